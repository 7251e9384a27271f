package tasks

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cuefix/internal/shared"
)

// ErrHostStopped is returned when work is posted to a stopped [Host].
var ErrHostStopped = errors.New("mutation host stopped")

// Host runs structural playlist mutations one at a time on a single goroutine.
type Host struct {
	jobs    chan func()
	stopped chan struct{}
	running atomic.Bool
	logger  *log.Logger
}

// NewHost creates a host whose queue holds up to buffer pending jobs.
func NewHost(buffer int, logger *log.Logger) *Host {
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Host{
		jobs:    make(chan func(), buffer),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run executes posted jobs until ctx is done. It must be called once.
func (h *Host) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return errors.New("mutation host already running")
	}
	defer close(h.stopped)

	h.logger.Debug("mutation host started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("mutation host stopped")
			return ctx.Err()
		case job := <-h.jobs:
			job()
		}
	}
}

// Post queues fn without waiting for it to run.
func (h *Host) Post(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-h.stopped:
		return ErrHostStopped
	default:
	}

	select {
	case h.jobs <- fn:
		return nil
	case <-h.stopped:
		return ErrHostStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the host goroutine and waits for its result.
//
// If ctx ends before fn starts, fn is skipped.
func (h *Host) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	job := func() {
		if err := ctx.Err(); err != nil {
			result <- err
			return
		}
		result <- fn()
	}

	if err := h.Post(ctx, job); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-h.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrHostStopped
		}
	}
}
