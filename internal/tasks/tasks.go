package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/services"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Detector finds stale entries in a batch of playlist items.
type Detector interface {
	// Run evaluates handles and returns the removal plan. A cancelled run
	// returns the context error and no plan.
	Run(ctx context.Context, playlist string, handles []models.ItemHandle, progress chan<- ProgressUpdate) (*models.RemovalPlan, error)
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Workers int // Concurrent existence checks in pass one, defaults to GOMAXPROCS
	Logger  *log.Logger
}

// Engine implements [Detector] on top of the metadata and filesystem collaborators.
type Engine struct {
	meta    services.MetadataService
	fs      services.FileSystem
	workers int
	logger  *log.Logger
}

// NewEngine creates a new Engine with the provided collaborators.
func NewEngine(meta services.MetadataService, fs services.FileSystem, opts EngineOpts) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Engine{meta: meta, fs: fs, workers: opts.Workers, logger: opts.Logger}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run evaluates one batch.
//
// Metadata is queried once for all eligible items. Pass one checks every
// cue-derived item's backing file and collects the ones that exist; pass two
// starts only after pass one has finished and marks plain items whose path
// is one of the collected backing files.
func (e *Engine) Run(ctx context.Context, playlist string, handles []models.ItemHandle, progress chan<- ProgressUpdate) (*models.RemovalPlan, error) {
	if e.meta == nil || e.fs == nil {
		return nil, fmt.Errorf("%w: detector collaborators not configured", shared.ErrServiceUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(e.logger, "run_id", runID, "playlist", playlist)

	sendProgress(progress, resolveUpdate(len(handles), playlist))

	items, err := e.resolveAll(ctx, handles)
	if err != nil {
		return nil, err
	}

	var (
		reasons = make([]models.RemovalReason, len(items))
		refs    = NewReferencedFileSet()
		count   atomic.Int64
	)

	if err := e.indexReferences(ctx, logger, items, reasons, refs, &count, progress); err != nil {
		return nil, err
	}
	if logger.GetLevel() <= log.DebugLevel {
		logger.Debug("indexed backing files", "files", refs.Paths())
	}

	sendProgress(progress, scanUpdate(len(items), refs.Len()))
	if err := e.scanDuplicates(ctx, logger, items, reasons, refs, &count); err != nil {
		return nil, err
	}

	plan := models.NewRemovalPlan(runID, playlist, reasons)
	if int64(plan.Count) != count.Load() {
		return nil, fmt.Errorf("removal count mismatch: plan has %d, counted %d", plan.Count, count.Load())
	}

	sendProgress(progress, planUpdate(plan))
	logger.Info("evaluated batch", "items", len(items), "references", refs.Len(), "removed", plan.Count)
	return plan, nil
}

// resolveAll queries metadata for the eligible handles and resolves every item.
func (e *Engine) resolveAll(ctx context.Context, handles []models.ItemHandle) ([]models.BatchItem, error) {
	var (
		query     []models.ItemHandle
		positions []int
	)
	for i, h := range handles {
		if eligible(h) {
			query = append(query, h)
			positions = append(positions, i)
		}
	}

	records := make([]*models.InfoRecord, len(handles))
	if len(query) > 0 {
		got, err := e.meta.QueryBulk(ctx, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: metadata query failed: %v", shared.ErrServiceUnavailable, err)
		}
		if len(got) != len(query) {
			return nil, fmt.Errorf("%w: metadata query returned %d records for %d items", shared.ErrServiceUnavailable, len(got), len(query))
		}
		for j, pos := range positions {
			records[pos] = got[j]
		}
	}

	items := make([]models.BatchItem, len(handles))
	for i, h := range handles {
		items[i] = e.resolve(i, h, records[i])
	}
	return items, nil
}

// resolve derives one item's identity from its handle and metadata record.
func (e *Engine) resolve(index int, h models.ItemHandle, rec *models.InfoRecord) models.BatchItem {
	item := models.BatchItem{Index: index, Path: h.Location}
	if !eligible(h) {
		return item
	}
	item.Eligible = true

	declared, ok := rec.Get(models.InfoReferencedFile)
	if !ok || declared == "" {
		return item
	}

	item.IsCueDerived = true
	item.ReferencedFile = shared.JoinPath(shared.DirectoryOf(h.Location), declared)
	return item
}

// indexReferences is pass one.
func (e *Engine) indexReferences(
	ctx context.Context,
	logger *log.Logger,
	items []models.BatchItem,
	reasons []models.RemovalReason,
	refs *ReferencedFileSet,
	count *atomic.Int64,
	progress chan<- ProgressUpdate,
) error {
	var cue []int
	for i := range items {
		if items[i].Eligible && items[i].IsCueDerived {
			cue = append(cue, i)
		}
	}
	if len(cue) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var done atomic.Int64
	for _, i := range cue {
		if gctx.Err() != nil {
			break
		}
		item := items[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := e.fs.Exists(gctx, item.ReferencedFile)
			switch res.Status {
			case services.StatusCancelled:
				return res.Err
			case services.StatusExists:
				refs.Add(item.ReferencedFile)
				logger.Debug("backing file present", "index", item.Index, "file", item.ReferencedFile)
			case services.StatusCheckFailed:
				logger.Warn("could not check backing file, treating as missing", "index", item.Index, "file", item.ReferencedFile, "error", res.Err)
				reasons[item.Index] = models.ReasonMissingReference
				count.Add(1)
			default:
				logger.Debug("backing file missing", "index", item.Index, "file", item.ReferencedFile)
				reasons[item.Index] = models.ReasonMissingReference
				count.Add(1)
			}

			sendProgress(progress, indexUpdate(int(done.Add(1)), len(cue)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// scanDuplicates is pass two. refs must be complete.
func (e *Engine) scanDuplicates(
	ctx context.Context,
	logger *log.Logger,
	items []models.BatchItem,
	reasons []models.RemovalReason,
	refs *ReferencedFileSet,
	count *atomic.Int64,
) error {
	if refs.Len() == 0 {
		return ctx.Err()
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !item.Eligible || item.IsCueDerived || reasons[item.Index] != models.ReasonNone {
			continue
		}
		if refs.Contains(item.Path) {
			logger.Debug("duplicate of referenced file", "index", item.Index, "path", item.Path)
			reasons[item.Index] = models.ReasonDuplicateOfReference
			count.Add(1)
		}
	}
	return nil
}

func eligible(h models.ItemHandle) bool {
	return shared.IsFileLocation(h.Location) && len(h.Location) > len(models.FileScheme)
}
