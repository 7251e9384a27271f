package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/time/rate"

	"github.com/desertthunder/cuefix/internal/shared"
)

// OSFileSystem implements [FileSystem] with os.Stat.
type OSFileSystem struct {
	limiter *rate.Limiter
	stat    func(string) (fs.FileInfo, error)
}

// NewOSFileSystem creates a filesystem checker allowing perSecond stats per second.
//
// A rate of zero or less disables limiting.
func NewOSFileSystem(perSecond float64) *OSFileSystem {
	fsys := &OSFileSystem{stat: os.Stat}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		fsys.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return fsys
}

// Exists reports whether location names an existing regular file.
func (f *OSFileSystem) Exists(ctx context.Context, location string) ExistResult {
	path, err := shared.LocationToPath(location)
	if err != nil {
		return Failed(err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Cancelled(ctxErr)
			}
			// The limiter refuses waits that would outlive the deadline.
			return Cancelled(fmt.Errorf("%w: stat limiter: %v", context.DeadlineExceeded, err))
		}
	}

	info, err := f.stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		return ExistResult{Status: StatusExists}
	case err == nil:
		return ExistResult{Status: StatusAbsent}
	case errors.Is(err, fs.ErrNotExist):
		return ExistResult{Status: StatusAbsent}
	default:
		return Failed(err)
	}
}
