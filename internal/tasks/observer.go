package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

// ErrPlaylistChanged is returned when a playlist was edited between evaluation and apply.
var ErrPlaylistChanged = errors.New("playlist changed during evaluation")

// ItemsAddedObserver is notified when items are appended to a playlist.
type ItemsAddedObserver interface {
	// OnItemsAdded is called after added were inserted at position start.
	OnItemsAdded(ctx context.Context, playlistID string, start int, added []models.ItemHandle)
}

// PlaylistStore is the host's view of the live playlists.
type PlaylistStore interface {
	LockMask(playlistID string) (models.LockMask, error)
	Name(playlistID string) (string, error)
	Items(playlistID string) ([]models.ItemHandle, error)
	// RemoveItems deletes the given positions and returns the removed handles in position order.
	RemoveItems(playlistID string, positions []int) ([]models.ItemHandle, error)
}

// HistoryStore persists applied removals.
type HistoryStore interface {
	Create(run *models.RemovalRun) error
}

// Reporter announces an applied removal to the operator.
type Reporter interface {
	Report(playlistName string, count int)
}

// Outcome is the result of one evaluation triggered for a playlist.
type Outcome struct {
	PlaylistID string
	Playlist   string
	Plan       *models.RemovalPlan // Positions are playlist positions; nil when not evaluated
	Applied    bool
	Skipped    string // Why the playlist was not evaluated
	Err        error
}

// CueFixerOpts configures a [CueFixer].
type CueFixerOpts struct {
	Scope    string           // shared.ScopePlaylist or shared.ScopeAdded
	Lock     *shared.FileLock // Optional cross-process lock held while applying
	History  HistoryStore     // Optional
	Reporter Reporter
	Progress chan<- ProgressUpdate // Optional, receives detector and apply updates
	Logger   *log.Logger
}

// CueFixer runs the detector whenever items are added and applies the result on the host.
type CueFixer struct {
	detector Detector
	store    PlaylistStore
	host     *Host
	scope    string
	lock     *shared.FileLock
	history  HistoryStore
	reporter Reporter
	progress chan<- ProgressUpdate
	logger   *log.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	outcomes []Outcome
}

var _ ItemsAddedObserver = (*CueFixer)(nil)

// NewCueFixer creates a CueFixer.
func NewCueFixer(detector Detector, store PlaylistStore, host *Host, opts CueFixerOpts) *CueFixer {
	if opts.Scope == "" {
		opts.Scope = shared.ScopePlaylist
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &CueFixer{
		detector: detector,
		store:    store,
		host:     host,
		scope:    opts.Scope,
		lock:     opts.Lock,
		history:  opts.History,
		reporter: opts.Reporter,
		progress: opts.Progress,
		logger:   opts.Logger,
	}
}

// batch is the snapshot a background evaluation works on.
type batch struct {
	playlistID string
	name       string
	offset     int
	handles    []models.ItemHandle
}

// OnItemsAdded checks the lock, snapshots the batch and evaluates it in the background.
//
// Call [CueFixer.Wait] to block until every started evaluation has been applied.
func (f *CueFixer) OnItemsAdded(ctx context.Context, playlistID string, start int, added []models.ItemHandle) {
	b, out := f.prepare(playlistID, f.scope, start, added)
	if out != nil {
		f.record(*out)
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.record(f.evaluate(ctx, b))
	}()
}

// Evaluate runs the whole cycle for a playlist synchronously using the whole playlist as batch.
func (f *CueFixer) Evaluate(ctx context.Context, playlistID string) Outcome {
	b, out := f.prepare(playlistID, shared.ScopePlaylist, 0, nil)
	if out != nil {
		return *out
	}
	return f.evaluate(ctx, b)
}

// Wait blocks until background evaluations finish and returns their outcomes.
func (f *CueFixer) Wait() []Outcome {
	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.outcomes
	f.outcomes = nil
	return out
}

func (f *CueFixer) record(o Outcome) {
	f.mu.Lock()
	f.outcomes = append(f.outcomes, o)
	f.mu.Unlock()
}

// prepare checks the lock and snapshots the batch. A non-nil Outcome means stop here.
func (f *CueFixer) prepare(playlistID, scope string, start int, added []models.ItemHandle) (batch, *Outcome) {
	b := batch{playlistID: playlistID}

	mask, err := f.store.LockMask(playlistID)
	if err != nil {
		return b, &Outcome{PlaylistID: playlistID, Err: err}
	}

	name, err := f.store.Name(playlistID)
	if err != nil {
		return b, &Outcome{PlaylistID: playlistID, Err: err}
	}
	b.name = name

	if mask.Has(models.LockFilterRemove) {
		f.logger.Debug("playlist locked against removal, skipping", "playlist", name, "lock", mask)
		return b, &Outcome{PlaylistID: playlistID, Playlist: name, Skipped: "locked"}
	}

	switch scope {
	case shared.ScopeAdded:
		b.offset = start
		b.handles = append([]models.ItemHandle(nil), added...)
	default:
		items, err := f.store.Items(playlistID)
		if err != nil {
			return b, &Outcome{PlaylistID: playlistID, Playlist: name, Err: err}
		}
		b.handles = items
	}

	if len(b.handles) == 0 {
		return b, &Outcome{PlaylistID: playlistID, Playlist: name, Skipped: "empty"}
	}
	return b, nil
}

// evaluate runs the detector and hands a non-empty plan to the host.
func (f *CueFixer) evaluate(ctx context.Context, b batch) Outcome {
	out := Outcome{PlaylistID: b.playlistID, Playlist: b.name}

	plan, err := f.detector.Run(ctx, b.name, b.handles, f.progress)
	if err != nil {
		if ctx.Err() != nil {
			f.logger.Info("evaluation cancelled", "playlist", b.name)
		} else {
			f.logger.Error("evaluation failed", "playlist", b.name, "error", err)
		}
		out.Err = err
		return out
	}

	if b.offset != 0 {
		plan = plan.Offset(b.offset)
	}
	out.Plan = plan

	if plan.Empty() {
		return out
	}

	if err := f.host.Do(ctx, func() error { return f.apply(ctx, b, plan) }); err != nil {
		f.logger.Error("failed to apply removal plan", "playlist", b.name, "run_id", plan.RunID, "error", err)
		out.Err = err
		return out
	}
	out.Applied = true
	sendProgress(f.progress, applyUpdate(b.name, plan.Count))
	return out
}

// apply removes the planned entries. It runs on the host goroutine.
func (f *CueFixer) apply(ctx context.Context, b batch, plan *models.RemovalPlan) error {
	if f.lock != nil {
		if err := f.lock.Lock(ctx); err != nil {
			return err
		}
		defer func() {
			if err := f.lock.Unlock(); err != nil {
				f.logger.Warn("failed to release library lock", "path", f.lock.Path(), "error", err)
			}
		}()
	}

	mask, err := f.store.LockMask(b.playlistID)
	if err != nil {
		return err
	}
	if mask.Has(models.LockFilterRemove) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistLocked, b.name)
	}

	current, err := f.store.Items(b.playlistID)
	if err != nil {
		return err
	}
	for _, pos := range plan.Indices {
		i := pos - b.offset
		if pos >= len(current) || current[pos] != b.handles[i] {
			return fmt.Errorf("%w: %s position %d", ErrPlaylistChanged, b.name, pos)
		}
	}

	removed, err := f.store.RemoveItems(b.playlistID, plan.Indices)
	if err != nil {
		return err
	}

	if f.reporter != nil {
		f.reporter.Report(b.name, plan.Count)
	}
	f.logger.Info("removed stale items", "playlist", b.name, "run_id", plan.RunID, "removed", len(removed))

	if f.history != nil {
		entries := make([]models.RemovalEntry, len(removed))
		for i, h := range removed {
			pos := plan.Indices[i]
			entries[i] = models.RemovalEntry{
				Position: pos,
				Location: h.Location,
				Subsong:  h.Subsong,
				Reason:   plan.Reasons[pos],
			}
		}
		run := models.NewRemovalRun(0, b.playlistID, b.name, entries)
		run.SetID(plan.RunID)
		if err := f.history.Create(run); err != nil {
			f.logger.Warn("failed to record removal history", "run_id", plan.RunID, "error", err)
		}
	}
	return nil
}
