package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/formatter"
	"github.com/desertthunder/cuefix/internal/services"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Watch adds media files created under a directory to a playlist, one batch per quiet period.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("dir")
	if dir == "" {
		return fmt.Errorf("%w: directory to watch", shared.ErrMissingArgument)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidInput, root)
	}

	playlist, err := r.lookupPlaylist(cmd.String("playlist"))
	if err != nil {
		return err
	}

	patterns := cmd.StringSlice("pattern")
	if len(patterns) == 0 {
		patterns = r.config.Watch.Patterns
	}

	if _, err := r.detector(); err != nil {
		return err
	}
	fixer, stop, err := r.startFixer(ctx, nil)
	if err != nil {
		return err
	}
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	logger := shared.WithLogger(r.logger, "dir", root, "playlist", playlist.Name())
	if err := addWatchRecursive(watcher, root, logger); err != nil {
		return err
	}

	flush := func(paths []string) {
		handles, err := r.library.Expand(ctx, existingFiles(paths))
		if err != nil {
			logger.Error("failed to expand new files", "error", err)
			return
		}
		if len(handles) == 0 {
			return
		}

		start, err := r.playlists.AppendItems(playlist.ID(), handles)
		if err != nil {
			logger.Error("failed to append items", "error", err)
			return
		}
		r.writePlain("%s Added %d item(s) to %s\n", formatter.OK("✓"), len(handles), playlist.Name())

		fixer.OnItemsAdded(ctx, playlist.ID(), start, handles)
		r.reportOutcomes(fixer.Wait())
	}

	accept := func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		return services.MatchesAny(patterns, rel)
	}

	onDir := func(path string) {
		if err := addWatchRecursive(watcher, path, logger); err != nil {
			logger.Warn("failed to watch new directory", "path", path, "error", err)
		}
	}

	logger.Info("watching for new media", "patterns", patterns, "debounce", r.config.Watch.Debounce())
	r.writePlain("Watching %s for new files (Ctrl-C to stop)\n", root)

	err = watchLoop(ctx, watchEvents{
		events:   watcher.Events,
		errors:   watcher.Errors,
		debounce: r.config.Watch.Debounce(),
		accept:   accept,
		onDir:    onDir,
		flush:    flush,
		logger:   logger,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchEvents wires an event source to the debounced batch handler.
type watchEvents struct {
	events   <-chan fsnotify.Event
	errors   <-chan error
	debounce time.Duration
	accept   func(path string) bool // Selects the files worth adding
	onDir    func(path string)      // Called for newly created directories
	flush    func(paths []string)   // Receives the sorted batch
	logger   *log.Logger
}

// watchLoop collects created files, including those inside newly created
// directories, until no event arrived for the debounce window, then hands them
// to flush. Files still pending on cancellation are dropped; a closed event
// channel flushes them.
func watchLoop(ctx context.Context, w watchEvents) error {
	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		expiry <-chan time.Time
	)

	fire := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		pending = make(map[string]struct{})
		w.flush(paths)
	}

	rearm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(w.debounce)
		expiry = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case <-expiry:
			expiry = nil
			fire()

		case event, ok := <-w.events:
			if !ok {
				fire()
				return nil
			}

			switch {
			case event.Has(fsnotify.Create):
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.onDir != nil {
						w.onDir(event.Name)
					}
					if w.collect(event.Name, pending) == 0 {
						continue
					}
					break
				}
				if !w.accept(event.Name) {
					continue
				}
				pending[event.Name] = struct{}{}
			case event.Has(fsnotify.Write):
				if _, ok := pending[event.Name]; !ok {
					continue
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(pending, event.Name)
				continue
			default:
				continue
			}
			rearm()

		case err, ok := <-w.errors:
			if !ok {
				w.errors = nil
				continue
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// collect queues the accepted files already inside a directory that was
// moved or copied into the tree, and returns how many were added.
func (w watchEvents) collect(dir string, pending map[string]struct{}) int {
	added := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.Type().IsRegular() || !w.accept(path) {
			return nil
		}
		if _, ok := pending[path]; !ok {
			pending[path] = struct{}{}
			added++
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to scan new directory", "path", dir, "error", err)
	}
	return added
}

// addWatchRecursive adds dir and all its subdirectories to the watcher.
func addWatchRecursive(watcher *fsnotify.Watcher, dir string, logger *log.Logger) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// existingFiles drops paths that were removed before the batch was flushed.
func existingFiles(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}
