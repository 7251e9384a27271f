package tasks

import (
	"context"
	"sync"
)

// SweepOpts contains configuration for sweeping several playlists.
type SweepOpts struct {
	NumWorkers int // Concurrent evaluations (default: 2, max: 8)
}

// SweepResult summarizes a sweep.
type SweepResult struct {
	TotalPlaylists int
	Evaluated      int
	Skipped        int
	Failed         int
	Removed        int
	Outcomes       []Outcome // In completion order
}

// Sweep evaluates whole playlists concurrently and applies each plan through the host.
//
// Locked playlists are skipped. A failure on one playlist does not stop the others.
func (f *CueFixer) Sweep(ctx context.Context, prog chan<- ProgressUpdate, playlistIDs []string, opts SweepOpts) (*SweepResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}

	result := &SweepResult{
		TotalPlaylists: len(playlistIDs),
		Outcomes:       make([]Outcome, 0, len(playlistIDs)),
	}

	jobs := make(chan string)
	results := make(chan Outcome, len(playlistIDs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go f.sweepWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, id := range playlistIDs {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for out := range results {
		completed++
		result.Outcomes = append(result.Outcomes, out)

		name := out.Playlist
		if name == "" {
			name = out.PlaylistID
		}

		switch {
		case out.Err != nil:
			result.Failed++
			sendProgress(prog, sweepFailedUpdate(completed, len(playlistIDs), name, out.Err))
		case out.Skipped != "":
			result.Skipped++
			sendProgress(prog, sweepCompletedUpdate(completed, len(playlistIDs), name, 0))
		default:
			result.Evaluated++
			removed := 0
			if out.Applied {
				removed = out.Plan.Count
				result.Removed += removed
			}
			sendProgress(prog, sweepCompletedUpdate(completed, len(playlistIDs), name, removed))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// sweepWorker evaluates playlists from the jobs channel.
func (f *CueFixer) sweepWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- Outcome) {
	defer wg.Done()

	for id := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- f.Evaluate(ctx, id)
	}
}
