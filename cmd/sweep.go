package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/tasks"
)

// Sweep evaluates the named playlists, or every playlist, as whole batches.
func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	if err := r.openLibrary(); err != nil {
		return err
	}

	var ids []string
	if names := cmd.Args().Slice(); len(names) > 0 {
		for _, name := range names {
			playlist, err := r.lookupPlaylist(name)
			if err != nil {
				return err
			}
			ids = append(ids, playlist.ID())
		}
	} else {
		playlists, err := r.playlists.List(nil)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID())
		}
	}

	if len(ids) == 0 {
		return r.writePlain("No playlists to sweep.\n")
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := r.drainProgress(progress, false)

	fixer, stop, err := r.startFixer(ctx, progress)
	if err != nil {
		close(progress)
		<-printed
		return err
	}

	r.logger.Info("starting sweep", "playlists", len(ids))
	result, err := fixer.Sweep(ctx, progress, ids, tasks.SweepOpts{NumWorkers: int(cmd.Int("workers"))})
	stop()
	close(progress)
	<-printed

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Sweep Complete")
		r.writePlain("Playlists: %d\n", result.TotalPlaylists)
		r.writePlain("Evaluated: %d  Skipped: %d  Failed: %d\n", result.Evaluated, result.Skipped, result.Failed)
		r.writePlain("Removed: %d item(s)\n", result.Removed)
	}
	return err
}
