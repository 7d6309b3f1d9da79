package sensor

import (
	"errors"
	"fmt"
)

// ErrDeviceUnavailable is returned by Init when a sensor cannot be bound or
// does not report ready. It is fatal to startup.
var ErrDeviceUnavailable = errors.New("sensor device unavailable")

// ErrFetch matches every FetchError.
var ErrFetch = errors.New("sensor fetch failed")

// FetchError is a transient failure to read one source during a cycle.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFetch, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrFetch)
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func unavailable(source string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, source, err)
}
