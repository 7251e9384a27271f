package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/formatter"
)

// historyEntry is the JSON shape of one removed item.
type historyEntry struct {
	Position int    `json:"position"`
	Location string `json:"location"`
	Subsong  int    `json:"subsong,omitempty"`
	Reason   string `json:"reason"`
}

// historyRun is the JSON shape of one removal run.
type historyRun struct {
	ID        string         `json:"id"`
	Playlist  string         `json:"playlist"`
	Removed   int            `json:"removed"`
	CreatedAt string         `json:"created_at"`
	Entries   []historyEntry `json:"entries"`
}

// History prints the removal runs recorded by Cue Fix, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.openLibrary(); err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if name := cmd.String("playlist"); name != "" {
		playlist, err := r.lookupPlaylist(name)
		if err != nil {
			return err
		}
		criteria["playlist_id"] = playlist.ID()
	}

	runs, err := r.removals.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if cmd.Bool("json") {
		out := make([]historyRun, 0, len(runs))
		for _, run := range runs {
			h := historyRun{
				ID:        run.ID(),
				Playlist:  run.PlaylistName(),
				Removed:   run.Removed(),
				CreatedAt: run.CreatedAt().Format(time.RFC3339),
				Entries:   make([]historyEntry, 0, run.Removed()),
			}
			for _, e := range run.Entries() {
				h.Entries = append(h.Entries, historyEntry{
					Position: e.Position,
					Location: e.Location,
					Subsong:  e.Subsong,
					Reason:   e.Reason.String(),
				})
			}
			out = append(out, h)
		}
		return r.writeJSON(out, true)
	}

	if _, err := r.output.Write(formatter.HistoryToText(runs)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
