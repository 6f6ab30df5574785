package media

import (
	"errors"
	"fmt"
)

var (
	// ErrPlaybackOpen is matched by every *OpenError.
	ErrPlaybackOpen     = errors.New("load failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDirectory      = errors.New("no directory")
)

// OpenError reports that a source could not be opened. The controller
// stays paused and does not retry.
type OpenError struct {
	URL string
	Err error
}

func (e *OpenError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("load failed: %v", e.Err)
	}
	return fmt.Sprintf("load failed: %s: %v", e.URL, e.Err)
}

func (e *OpenError) Unwrap() []error { return []error{ErrPlaybackOpen, e.Err} }

// TransientError wraps a play, pause or seek failure mid-session.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// HTTPStatusError is a download answered with anything but 200.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string { return fmt.Sprintf("http status %d", e.Code) }

// WriteError wraps the failure to store downloaded bytes. Its message is the
// underlying error's.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }
