package service

import (
	"time"

	"github.com/parleyai/quorum/internal/adapters/llm"
	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the per-lane capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdempotencySize sets the size of the idempotency key cache.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithAdapters sets the model adapters the service dispatches to.
// Without this option the service runs on deterministic static
// doubles.
func WithAdapters(adapters ...llm.Adapter) Option {
	return func(s *Service) {
		if len(adapters) > 0 {
			s.adapters = adapters
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithDefaultStrategy sets the strategy applied when a submission
// names none.
func WithDefaultStrategy(strategy model.Strategy) Option {
	return func(s *Service) {
		if strategy.Valid() {
			s.defaultStrategy = strategy
		}
	}
}

// WithDefaultTaskType sets the task type applied when a submission
// names none.
func WithDefaultTaskType(task model.TaskType) Option {
	return func(s *Service) {
		if task.Valid() {
			s.defaultTaskType = task
		}
	}
}

// WithConfidenceThreshold sets the default confidence cutoff for
// aggregation.
func WithConfidenceThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 1 {
			s.defaultThreshold = threshold
		}
	}
}

// WithAdapterTimeout bounds each individual model call.
func WithAdapterTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.adapterTimeout = d
		}
	}
}

// WithDispatchTimeout bounds one whole fan-out round.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dispatchTimeout = d
		}
	}
}

// WithJobTimeout bounds the wall-clock lifetime of a job in the
// pipeline.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithRetention sets how long terminal jobs stay readable before the
// janitor removes them.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets how often the janitor runs.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}
