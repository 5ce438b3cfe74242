// Package service provides the consensus facade that implements the
// dependencies required by the HTTP API: submit, poll, cancel and
// stats, on top of the queue, worker pool and job store.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyai/quorum/internal/adapters/dispatch"
	"github.com/parleyai/quorum/internal/adapters/llm"
	jobqueue "github.com/parleyai/quorum/internal/adapters/mq/queue"
	workerpool "github.com/parleyai/quorum/internal/adapters/mq/worker"
	"github.com/parleyai/quorum/internal/adapters/repository"
	"github.com/parleyai/quorum/internal/domain/aggregate"
	"github.com/parleyai/quorum/internal/domain/dedupe"
	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/logger"
	"github.com/parleyai/quorum/pkg/metrics"
)

// Service owns the consensus pipeline end to end. One instance per
// process; all methods are safe for concurrent use.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	idempotency dedupe.Index
	queue       jobqueue.Queue
	registry    *llm.Registry
	dispatcher  *dispatch.Dispatcher
	aggregator  *aggregate.Engine
	pool        *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	idempotencySize  int
	adapters         []llm.Adapter
	defaultStrategy  model.Strategy
	defaultTaskType  model.TaskType
	defaultThreshold float64
	adapterTimeout   time.Duration
	dispatchTimeout  time.Duration
	jobTimeout       time.Duration
	retention        time.Duration
	sweepInterval    time.Duration

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        10000,
		idempotencySize:  10000,
		defaultStrategy:  model.StrategyMajority,
		defaultTaskType:  model.TaskGeneral,
		defaultThreshold: 0.7,
		adapterTimeout:   30 * time.Second,
		dispatchTimeout:  45 * time.Second,
		jobTimeout:       60 * time.Second,
		retention:        30 * time.Minute,
		sweepInterval:    time.Minute,
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("consensus")
	}

	s.logger.Info(ctx, "starting consensus service...")

	if len(s.adapters) == 0 {
		// Zero-config default: deterministic doubles so the service
		// answers without provider keys.
		s.adapters = []llm.Adapter{
			llm.NewStatic("static-a"),
			llm.NewStatic("static-b"),
			llm.NewStatic("static-c"),
		}
		s.logger.Warn(ctx, "no model adapters configured, using static doubles")
	}

	s.store = repository.NewMemStore()
	s.idempotency = dedupe.NewInMemoryIndex(
		dedupe.WithMaxSize(s.idempotencySize),
	)
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
	)
	s.registry = llm.NewRegistry(s.adapters...)
	s.dispatcher = dispatch.New(
		dispatch.WithCallTimeout(s.adapterTimeout),
		dispatch.WithOverallTimeout(s.dispatchTimeout),
	)
	s.aggregator = aggregate.New()

	s.pool = workerpool.NewPool(
		s.workerCount,
		s.queue,
		s.store,
		s.dispatcher,
		s.aggregator,
		s.registry,
		workerpool.WithJobTimeout(s.jobTimeout),
	)
	s.pool.Start(ctx)

	go s.janitor()

	s.started = true
	s.logger.Info(ctx, "consensus service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("models", strings.Join(s.registry.Names(), ",")),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping consensus service...")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.queue != nil && !s.queue.IsClosed() {
		_ = s.queue.Close()
	}

	s.started = false
	s.logger.Info(ctx, "consensus service stopped")
}

// Submit validates a request, registers a pending job and queues it
// for background execution. It never blocks on the pipeline.
func (s *Service) Submit(ctx context.Context, req model.SubmitRequest) (*model.ConsensusJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()

	if req.IdempotencyKey != "" {
		if existing, seen := s.idempotency.SeenOrRecord(ctx, req.IdempotencyKey, id); seen {
			metrics.RecordJobDuplicate()
			s.logger.Debug(ctx, "duplicate submission",
				logger.String("idempotency_key", req.IdempotencyKey),
				logger.String("job_id", existing),
			)
			job, err := s.store.Get(ctx, existing)
			if err != nil {
				// The original job was swept; fall through to a fresh
				// one under the same key.
				s.idempotency.Forget(ctx, req.IdempotencyKey)
				if _, seen := s.idempotency.SeenOrRecord(ctx, req.IdempotencyKey, id); seen {
					return nil, fmt.Errorf("idempotency race on key %q", req.IdempotencyKey)
				}
			} else {
				return job, nil
			}
		}
	}

	job := &model.ConsensusJob{
		ID:                  id,
		Prompt:              req.Prompt,
		TaskType:            req.TaskType,
		Strategy:            req.Strategy,
		Priority:            req.Priority,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Models:              req.Models,
		TenantID:            req.TenantID,
		Status:              model.StatusPending,
		CreatedAt:           time.Now(),
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if !s.queue.Enqueue(ctx, jobqueue.Item{JobID: id, Priority: job.Priority}) {
		// Roll back so a retry is not answered with a stuck pending job.
		_ = s.store.Delete(ctx, id)
		if req.IdempotencyKey != "" {
			s.idempotency.Forget(ctx, req.IdempotencyKey)
		}
		return nil, ErrBackpressure
	}

	metrics.RecordJobSubmitted()
	s.logger.Info(ctx, "job submitted",
		logger.String("job_id", id),
		logger.String("strategy", string(job.Strategy)),
		logger.String("task_type", string(job.TaskType)),
		logger.String("priority", string(job.Priority)),
	)

	cp := job.Clone()
	return &cp, nil
}

// normalize applies defaults and validates a submission.
func (s *Service) normalize(req model.SubmitRequest) (model.SubmitRequest, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return req, ErrInvalidPrompt
	}

	if req.Strategy == "" {
		req.Strategy = s.defaultStrategy
	}
	if !req.Strategy.Valid() {
		return req, fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)
	}

	if req.TaskType == "" {
		req.TaskType = s.defaultTaskType
	}
	if !req.TaskType.Valid() {
		return req, fmt.Errorf("%w: %q", ErrUnknownTaskType, req.TaskType)
	}

	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}
	if !req.Priority.Valid() {
		return req, fmt.Errorf("%w: %q", ErrUnknownPriority, req.Priority)
	}

	if req.ConfidenceThreshold == 0 {
		req.ConfidenceThreshold = s.defaultThreshold
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return req, fmt.Errorf("%w: %v", ErrInvalidThreshold, req.ConfidenceThreshold)
	}

	return req, nil
}

// GetResult returns the current snapshot of a job. Polling clients
// call this until the status is terminal.
func (s *Service) GetResult(ctx context.Context, id string) (*model.ConsensusJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	job, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, err
	}
	return job, nil
}

// Cancel aborts a job. A queued job is failed in place; an in-flight
// job has its pipeline context cancelled as well. Terminal jobs cannot
// be cancelled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	if err := s.store.Fail(ctx, id, model.CauseCancelled); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		case errors.Is(err, repository.ErrTerminal):
			return fmt.Errorf("%w: %s", ErrJobTerminal, id)
		default:
			return err
		}
	}

	// Best effort: the pipeline may have already finished its round.
	interrupted := s.pool.Cancel(id)

	metrics.RecordJobCancelled()
	s.logger.Info(ctx, "job cancelled",
		logger.String("job_id", id),
		logger.Any("interrupted", interrupted),
	)
	return nil
}

// Models returns the configured model names.
func (s *Service) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.registry == nil {
		return nil
	}
	return s.registry.Names()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"worker_count":     s.workerCount,
		"queue_capacity":   s.queueSize,
		"default_strategy": string(s.defaultStrategy),
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		tracked, _ := s.store.Count(ctx)
		inFlight, _ := s.store.InFlight(ctx)

		stats["queue_length"] = queueLen
		stats["jobs_tracked"] = tracked
		stats["jobs_in_flight"] = inFlight
		stats["idempotency_keys"] = s.idempotency.Size()
		stats["models"] = s.registry.Names()

		metrics.UpdateJobsInFlight(inFlight)
		metrics.UpdateJobsTracked(tracked)
	}

	return stats
}

// janitor periodically removes terminal jobs past the retention
// window.
func (s *Service) janitor() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			removed, err := s.store.Sweep(ctx, time.Now().Add(-s.retention))
			if err != nil {
				s.logger.Error(ctx, "retention sweep failed", logger.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Debug(ctx, "retention sweep", logger.Int("removed", removed))
			}
		}
	}
}
