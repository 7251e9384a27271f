package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Library errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrPlaylistExists     = fmt.Errorf("playlist already exists")
	ErrPlaylistLocked     = fmt.Errorf("playlist lock forbids operation")
	ErrInvalidIndex       = fmt.Errorf("invalid playlist index")
	ErrLockFailed         = fmt.Errorf("failed to acquire library lock")

	// Media errors
	ErrInvalidLocation = fmt.Errorf("invalid location")
	ErrInvalidCueSheet = fmt.Errorf("invalid cue sheet")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
