package worker

import (
	"time"

	"github.com/parleyai/quorum/pkg/logger"
)

// Option applies a configuration option to the ConsensusWorker.
type Option func(*ConsensusWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *ConsensusWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(log logger.Logger) Option {
	return func(w *ConsensusWorker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithJobTimeout bounds the wall-clock time a single job may spend in
// the pipeline before it is failed with a timeout cause.
func WithJobTimeout(d time.Duration) Option {
	return func(w *ConsensusWorker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}
