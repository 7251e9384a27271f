package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/formatter"
	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/services"
	"github.com/desertthunder/cuefix/internal/shared"
	"github.com/desertthunder/cuefix/internal/tasks"
)

// playlistSummary is the JSON shape of a playlist listing.
type playlistSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Lock  string `json:"lock"`
	Items int    `json:"items"`
}

// playlistDetail is the JSON shape of a single playlist.
type playlistDetail struct {
	playlistSummary
	Entries []models.ItemHandle `json:"entries"`
}

// PlaylistCreate creates an empty playlist.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	mask, err := models.ParseLockMask(cmd.String("lock"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	if err := r.openLibrary(); err != nil {
		return err
	}

	playlist := models.NewPersistedPlaylist(0, name, mask)
	if err := r.playlists.Create(playlist); err != nil {
		return err
	}

	r.logger.Info("playlist created", "name", name, "id", playlist.ID())
	return r.writePlain("%s Created playlist %s (lock: %s)\n", formatter.OK("✓"), name, mask)
}

// PlaylistList lists the playlists of the library.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openLibrary(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if cmd.Bool("locked") {
		criteria["locked"] = true
	}

	playlists, err := r.playlists.List(criteria)
	if err != nil {
		return err
	}

	summaries := make([]playlistSummary, 0, len(playlists))
	for _, p := range playlists {
		items, err := r.playlists.Items(p.ID())
		if err != nil {
			return err
		}
		summaries = append(summaries, playlistSummary{ID: p.ID(), Name: p.Name(), Lock: p.LockMask().String(), Items: len(items)})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, false)
	}

	if len(summaries) == 0 {
		return r.writePlain("No playlists.\n")
	}
	for _, s := range summaries {
		r.writePlain("%-24s %5d item(s)  lock: %s\n", s.Name, s.Items, s.Lock)
	}
	return nil
}

// PlaylistShow prints the items of a playlist.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	playlist, err := r.lookupPlaylist(cmd.StringArg("name"))
	if err != nil {
		return err
	}

	items, err := r.playlists.Items(playlist.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlistDetail{
			playlistSummary: playlistSummary{
				ID:    playlist.ID(),
				Name:  playlist.Name(),
				Lock:  playlist.LockMask().String(),
				Items: len(items),
			},
			Entries: items,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(playlist.Name())
	r.writePlain("Lock: %s\n", playlist.LockMask())
	r.writePlain("Items: %d\n\n", len(items))
	for i, h := range items {
		if h.Subsong > 0 {
			r.writePlain("%4d. %s #%d\n", i+1, h.Location, h.Subsong)
		} else {
			r.writePlain("%4d. %s\n", i+1, h.Location)
		}
	}
	return nil
}

// PlaylistLock sets the lock filters of a playlist.
func (r *Runner) PlaylistLock(ctx context.Context, cmd *cli.Command) error {
	mask, err := models.ParseLockMask(cmd.String("filters"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	return r.setLockMask(cmd.StringArg("name"), mask)
}

// PlaylistUnlock clears the lock filters of a playlist.
func (r *Runner) PlaylistUnlock(ctx context.Context, cmd *cli.Command) error {
	return r.setLockMask(cmd.StringArg("name"), 0)
}

func (r *Runner) setLockMask(name string, mask models.LockMask) error {
	playlist, err := r.lookupPlaylist(name)
	if err != nil {
		return err
	}
	if err := r.playlists.SetLockMask(playlist.ID(), mask); err != nil {
		return err
	}
	return r.writePlain("%s %s lock: %s\n", formatter.OK("✓"), playlist.Name(), mask)
}

// PlaylistDelete removes a playlist with its items.
func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	playlist, err := r.lookupPlaylist(cmd.StringArg("name"))
	if err != nil {
		return err
	}
	if playlist.LockMask().Has(models.LockFilterRemovePlaylist) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistLocked, playlist.Name())
	}
	if err := r.playlists.Delete(playlist.ID()); err != nil {
		return err
	}
	return r.writePlain("%s Deleted playlist %s\n", formatter.OK("✓"), playlist.Name())
}

// PlaylistAdd expands the inputs into items, appends them and runs Cue Fix on the result.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() < 2 {
		return fmt.Errorf("%w: usage: playlist add NAME PATH...", shared.ErrMissingArgument)
	}

	if _, err := r.detector(); err != nil {
		return err
	}
	handles, err := r.library.Expand(ctx, args.Tail())
	if err != nil {
		return err
	}
	return r.addItems(ctx, args.First(), handles, cmd.Bool("verbose"))
}

// PlaylistImport appends the entries of an M3U file.
func (r *Runner) PlaylistImport(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return fmt.Errorf("%w: usage: playlist import NAME FILE.m3u", shared.ErrMissingArgument)
	}

	entries, err := services.ReadM3U(args.Get(1))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if _, err := r.detector(); err != nil {
		return err
	}
	handles, err := r.library.Expand(ctx, entries)
	if err != nil {
		return err
	}
	return r.addItems(ctx, args.First(), handles, cmd.Bool("verbose"))
}

// addItems appends handles to the named playlist and waits for the fixer to settle.
func (r *Runner) addItems(ctx context.Context, name string, handles []models.ItemHandle, verbose bool) error {
	playlist, err := r.lookupPlaylist(name)
	if err != nil {
		return err
	}
	if playlist.LockMask().Has(models.LockFilterAdd) {
		return fmt.Errorf("%w: %s does not accept new items", shared.ErrPlaylistLocked, playlist.Name())
	}
	if len(handles) == 0 {
		return r.writePlain("Nothing to add.\n")
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := r.drainProgress(progress, verbose)

	fixer, stop, err := r.startFixer(ctx, progress)
	if err != nil {
		close(progress)
		<-printed
		return err
	}

	start, err := r.playlists.AppendItems(playlist.ID(), handles)
	if err != nil {
		stop()
		close(progress)
		<-printed
		return err
	}
	r.logger.Info("items added", "playlist", playlist.Name(), "start", start, "count", len(handles))
	r.writePlain("%s Added %d item(s) to %s\n", formatter.OK("✓"), len(handles), playlist.Name())

	fixer.OnItemsAdded(ctx, playlist.ID(), start, handles)
	outcomes := fixer.Wait()
	stop()
	close(progress)
	<-printed

	r.reportOutcomes(outcomes)
	for _, out := range outcomes {
		if out.Err != nil && ctx.Err() == nil {
			return out.Err
		}
	}
	return nil
}
