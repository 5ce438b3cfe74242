package config

import "errors"

var (
	// ErrEmptyAddr is returned when the listen address is blank.
	ErrEmptyAddr = errors.New("addr must not be empty")

	// ErrInvalidThreshold is returned when the default confidence
	// threshold is outside [0,1].
	ErrInvalidThreshold = errors.New("confidence_threshold must be in [0,1]")

	// ErrInvalidStrategy is returned for an unknown default strategy.
	ErrInvalidStrategy = errors.New("unknown default_strategy")
)
