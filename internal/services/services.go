package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/cuefix/internal/models"
)

// MetadataService answers metadata queries for a whole batch in one call.
type MetadataService interface {
	// QueryBulk returns one record per handle, in order. A nil entry means no
	// metadata is available for that item. Only cancellation is reported as an error.
	QueryBulk(ctx context.Context, items []models.ItemHandle) ([]*models.InfoRecord, error)
}

// FileSystem checks whether a file location exists.
type FileSystem interface {
	// Exists never fails; problems are reported as [StatusCheckFailed]. A
	// check abandoned because ctx ended or will end first is [StatusCancelled].
	Exists(ctx context.Context, location string) ExistResult
}

// ExistStatus is the outcome of an existence check.
type ExistStatus int

const (
	StatusAbsent ExistStatus = iota
	StatusExists
	StatusCheckFailed
	StatusCancelled
)

func (s ExistStatus) String() string {
	switch s {
	case StatusExists:
		return "exists"
	case StatusAbsent:
		return "absent"
	case StatusCheckFailed:
		return "check_failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ExistResult distinguishes a confirmed absence from a check that could not complete.
type ExistResult struct {
	Status ExistStatus
	Err    error // Set when Status is StatusCheckFailed or StatusCancelled
}

// Exists reports whether the file was confirmed present.
func (r ExistResult) Exists() bool {
	return r.Status == StatusExists
}

// Failed builds a [StatusCheckFailed] result.
func Failed(err error) ExistResult {
	return ExistResult{Status: StatusCheckFailed, Err: err}
}

// Cancelled builds a [StatusCancelled] result.
func Cancelled(err error) ExistResult {
	return ExistResult{Status: StatusCancelled, Err: err}
}
