package repository

import "errors"

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")

	// ErrExists is returned when creating a job whose id is already
	// tracked.
	ErrExists = errors.New("job already exists")

	// ErrTerminal is returned when a transition targets a job that has
	// already completed or failed.
	ErrTerminal = errors.New("job is in a terminal state")

	// ErrInvalidTransition is returned for transitions the job state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid job state transition")
)
