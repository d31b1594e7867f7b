package overlay

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an overlay image does not exist.
	ErrNotFound = errors.New("overlay image not found")

	// ErrAccessDenied is returned when the image's store refuses access.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnsupportedScheme is returned for references no fetcher handles.
	ErrUnsupportedScheme = errors.New("unsupported overlay scheme")

	// ErrClosed is returned by a Cache after Close.
	ErrClosed = errors.New("overlay cache closed")
)

// FetchError wraps a failure to resolve one overlay reference.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("overlay %q: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the image does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
