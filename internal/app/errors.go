package service

import "errors"

// Validation and lifecycle errors surfaced to API callers.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrInvalidPrompt    = errors.New("prompt must not be empty")
	ErrUnknownStrategy  = errors.New("unknown consensus strategy")
	ErrUnknownTaskType  = errors.New("unknown task type")
	ErrUnknownPriority  = errors.New("unknown priority")
	ErrInvalidThreshold = errors.New("confidence threshold must be in [0,1]")
	ErrBackpressure     = errors.New("queue is full, try again later")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobTerminal      = errors.New("job already reached a terminal state")
)
