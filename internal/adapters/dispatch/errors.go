package dispatch

import "errors"

var (
	// ErrNoAdapters is returned when a dispatch is requested with an
	// empty adapter set.
	ErrNoAdapters = errors.New("no adapters configured")
)
