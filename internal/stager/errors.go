package stager

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotDirectory indicates the destination exists but is not a directory.
	ErrNotDirectory = errors.New("stager: destination exists and is not a directory")
	// ErrNotEmpty indicates the destination still had entries after reset.
	ErrNotEmpty = errors.New("stager: destination not empty after reset")
	// ErrDestinationBusy indicates another run holds the destination lock.
	ErrDestinationBusy = errors.New("stager: destination is locked by another run")
)

// ResetError reports that an existing destination could not be removed.
type ResetError struct {
	Destination string
	Err         error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("reset %s: %v", e.Destination, e.Err)
}

func (e *ResetError) Unwrap() error { return e.Err }

// CreateError reports that the destination could not be (re)created.
type CreateError struct {
	Destination string
	Err         error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create %s: %v", e.Destination, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// CopyError reports that a matched source could not be read or its numbered
// target could not be written. Path is always the offending source.
type CopyError struct {
	Path   string
	Target string
	Err    error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s to %s: %v", e.Path, e.Target, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// PatternError reports a syntactically invalid glob pattern. It is raised
// before the destination is touched.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// DiscoverError reports a filesystem failure while expanding the pattern.
type DiscoverError struct {
	Pattern string
	Err     error
}

func (e *DiscoverError) Error() string {
	return fmt.Sprintf("discover %q: %v", e.Pattern, e.Err)
}

func (e *DiscoverError) Unwrap() error { return e.Err }

// Error kinds returned by Kind.
const (
	KindReset    = "reset"
	KindCreate   = "create"
	KindCopy     = "copy"
	KindPattern  = "pattern"
	KindDiscover = "discover"
	KindBusy     = "busy"
	KindCanceled = "canceled"
	KindUnknown  = "unknown"
)

// Kind classifies err into one of the Kind* constants. A nil error yields "".
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		resetErr    *ResetError
		createErr   *CreateError
		copyErr     *CopyError
		patternErr  *PatternError
		discoverErr *DiscoverError
	)
	switch {
	case errors.As(err, &resetErr):
		return KindReset
	case errors.As(err, &createErr):
		return KindCreate
	case errors.As(err, &copyErr):
		return KindCopy
	case errors.As(err, &patternErr):
		return KindPattern
	case errors.As(err, &discoverErr):
		return KindDiscover
	case errors.Is(err, ErrDestinationBusy):
		return KindBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
