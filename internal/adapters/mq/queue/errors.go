package queue

import "errors"

var (
	// ErrClosed is returned by operations on a queue that has been
	// closed.
	ErrClosed = errors.New("queue is closed")
)
