package tasks

import (
	"fmt"

	"github.com/desertthunder/cuefix/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Resolve Phase = iota
	Index
	Scan
	Plan
	Apply
	Sweep
)

func (p Phase) String() string {
	switch p {
	case Resolve:
		return "resolve"
	case Index:
		return "index"
	case Scan:
		return "scan"
	case Plan:
		return "plan"
	case Apply:
		return "apply"
	case Sweep:
		return "sweep"
	default:
		return ""
	}
}

func resolveUpdate(total int, playlist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Reading metadata for %d item(s) of %s...", total, playlist),
	}
}

func indexUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Index,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Checking cue sheet references...", step, total),
	}
}

func scanUpdate(total, refs int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Scan,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Scanning %d item(s) against %d referenced file(s)...", total, refs),
	}
}

func planUpdate(plan *models.RemovalPlan) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Plan,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d item(s) to remove", plan.Count),
		Data:    plan,
	}
}

func applyUpdate(name string, removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Apply,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d item(s) from %s", removed, name),
	}
}

func sweepCompletedUpdate(step, total int, name string, removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sweep,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d removed)", step, total, name, removed),
	}
}

func sweepFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sweep,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
