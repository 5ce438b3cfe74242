// Package worker drives queued consensus jobs through the
// dispatch-and-aggregate pipeline and writes the terminal outcome to
// the job store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/parleyai/quorum/internal/adapters/dispatch"
	"github.com/parleyai/quorum/internal/adapters/llm"
	"github.com/parleyai/quorum/internal/adapters/mq/queue"
	"github.com/parleyai/quorum/internal/adapters/repository"
	"github.com/parleyai/quorum/internal/domain/aggregate"
	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/internal/domain/prompt"
	"github.com/parleyai/quorum/pkg/logger"
	"github.com/parleyai/quorum/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultJobTimeout       = 60 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Store is the slice of the job ledger workers write to.
type Store interface {
	Get(ctx context.Context, id string) (*model.ConsensusJob, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, results []model.ModelResult, consensus *model.ConsensusResult, warning string) error
	Fail(ctx context.Context, id string, cause string) error
}

// Dispatcher fans a prompt out to a set of adapters.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string, task model.TaskType, adapters []llm.Adapter) ([]model.ModelResult, error)
}

// Aggregator combines per-model results into one consensus judgment.
type Aggregator interface {
	Aggregate(ctx context.Context, results []model.ModelResult, strategy model.Strategy, threshold float64, task model.TaskType) (model.ConsensusResult, error)
}

// Selector resolves a per-job model allowlist to concrete adapters.
type Selector interface {
	Select(names []string) []llm.Adapter
}

// Queue defines how workers receive work items.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// ConsensusWorker processes one job at a time off the queue.
type ConsensusWorker struct {
	queue      Queue
	store      Store
	dispatcher Dispatcher
	aggregator Aggregator
	selector   Selector
	cancels    *cancelRegistry
	name       string
	jobTimeout time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewConsensusWorker creates a worker with configuration options.
func NewConsensusWorker(q Queue, store Store, dispatcher Dispatcher, aggregator Aggregator, selector Selector, cancels *cancelRegistry, opts ...Option) *ConsensusWorker {
	w := &ConsensusWorker{
		queue:      q,
		store:      store,
		dispatcher: dispatcher,
		aggregator: aggregator,
		selector:   selector,
		cancels:    cancels,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cancels == nil {
		w.cancels = newCancelRegistry()
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled, the queue closes
// or Shutdown is called.
func (w *ConsensusWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			w.processJob(ctx, item)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *ConsensusWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// pipelineOutcome carries the result of one pipeline run back to the
// watchdog select.
type pipelineOutcome struct {
	results   []model.ModelResult
	consensus *model.ConsensusResult
	warning   string
	failCause string
}

// processJob drives one job from pending to a terminal state.
func (w *ConsensusWorker) processJob(ctx context.Context, item queue.Item) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	job, err := w.store.Get(ctx, item.JobID)
	if err != nil {
		// Swept or deleted while queued.
		w.logger.Debug(ctx, "queued job no longer tracked", logger.String("job_id", item.JobID))
		return
	}

	if err := w.store.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, repository.ErrTerminal) {
			// Cancelled while still queued.
			w.logger.Debug(ctx, "skipping terminal job", logger.String("job_id", job.ID))
			return
		}
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "cannot start job", logger.String("job_id", job.ID), logger.Error(err))
		return
	}

	jctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()
	w.cancels.register(job.ID, cancel)
	defer w.cancels.unregister(job.ID)

	outcome := make(chan pipelineOutcome, 1)
	go func() {
		outcome <- w.runPipeline(jctx, job)
	}()

	// Watchdog: the store transitions the job even if the pipeline
	// goroutine is still wedged in an adapter call.
	select {
	case out := <-outcome:
		w.finish(ctx, job, out, start)
	case <-jctx.Done():
		cause := model.CauseCancelled
		if errors.Is(jctx.Err(), context.DeadlineExceeded) {
			cause = model.CauseTimeout
		}
		w.fail(ctx, job.ID, cause, start)
	}
}

// runPipeline enriches the prompt, fans out to the job's adapters and
// aggregates the results.
func (w *ConsensusWorker) runPipeline(ctx context.Context, job *model.ConsensusJob) pipelineOutcome {
	enriched := prompt.ForTask(job.TaskType, job.Prompt)
	adapters := w.selector.Select(job.Models)

	results, err := w.dispatcher.Dispatch(ctx, enriched, job.TaskType, adapters)
	if err != nil {
		if errors.Is(err, dispatch.ErrNoAdapters) {
			return pipelineOutcome{failCause: model.CauseNoAdapters}
		}
		// Context errors are handled by the watchdog; anything else is
		// unexpected.
		if ctx.Err() != nil {
			return pipelineOutcome{failCause: model.CauseTimeout}
		}
		w.logger.Error(ctx, "dispatch failed", logger.String("job_id", job.ID), logger.Error(err))
		return pipelineOutcome{failCause: model.CauseInternal}
	}

	aggStart := time.Now()
	consensus, err := w.aggregator.Aggregate(ctx, results, job.Strategy, job.ConfidenceThreshold, job.TaskType)
	metrics.RecordAggregateLatency(float64(time.Since(aggStart).Milliseconds()))

	switch {
	case err == nil:
		return pipelineOutcome{results: results, consensus: &consensus}
	case errors.Is(err, aggregate.ErrInsufficientConfidence):
		metrics.RecordSoftFailure("insufficient_confidence")
		return pipelineOutcome{results: results, warning: err.Error()}
	case errors.Is(err, aggregate.ErrNoAgreement):
		metrics.RecordSoftFailure("no_agreement")
		return pipelineOutcome{results: results, warning: err.Error()}
	default:
		w.logger.Error(ctx, "aggregation failed", logger.String("job_id", job.ID), logger.Error(err))
		return pipelineOutcome{failCause: model.CauseInternal}
	}
}

// finish writes the pipeline outcome to the store.
func (w *ConsensusWorker) finish(ctx context.Context, job *model.ConsensusJob, out pipelineOutcome, start time.Time) {
	if out.failCause != "" {
		w.fail(ctx, job.ID, out.failCause, start)
		return
	}

	if err := w.store.Complete(ctx, job.ID, out.results, out.consensus, out.warning); err != nil {
		if !errors.Is(err, repository.ErrTerminal) {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "cannot complete job", logger.String("job_id", job.ID), logger.Error(err))
		}
		return
	}

	metrics.RecordJobCompleted()
	metrics.RecordJobDuration(float64(time.Since(start).Milliseconds()))
	w.logger.Info(ctx, "job completed",
		logger.String("job_id", job.ID),
		logger.String("strategy", string(job.Strategy)),
		logger.Int("results", len(out.results)),
		logger.Duration("elapsed", time.Since(start)))
}

// fail transitions a job to failed. Races with client cancellation are
// benign; whoever lands the terminal transition first wins.
func (w *ConsensusWorker) fail(ctx context.Context, jobID, cause string, start time.Time) {
	if err := w.store.Fail(ctx, jobID, cause); err != nil {
		if !errors.Is(err, repository.ErrTerminal) {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "cannot fail job", logger.String("job_id", jobID), logger.Error(err))
		}
		return
	}

	metrics.RecordJobFailed(cause)
	metrics.RecordJobDuration(float64(time.Since(start).Milliseconds()))
	w.logger.Warn(ctx, "job failed",
		logger.String("job_id", jobID),
		logger.String("cause", cause),
		logger.Duration("elapsed", time.Since(start)))
}

// cancelRegistry tracks the cancel function of every in-flight job so
// a client cancel can abort a running pipeline.
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *cancelRegistry) register(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

func (r *cancelRegistry) unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

// cancel aborts the job's pipeline context if it is in flight.
func (r *cancelRegistry) cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[jobID]; ok {
		cancel()
		return true
	}
	return false
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*ConsensusWorker
	queue   Queue
	cancels *cancelRegistry

	logger logger.Logger
}

// NewPool creates a worker pool. A workerCount below one sizes the
// pool from the CPU count.
func NewPool(workerCount int, q Queue, store Store, dispatcher Dispatcher, aggregator Aggregator, selector Selector, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*ConsensusWorker, workerCount),
		queue:   q,
		cancels: newCancelRegistry(),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewConsensusWorker(q, store, dispatcher, aggregator, selector, pool.cancels, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Cancel aborts the pipeline of an in-flight job. Returns false when
// the job is not currently executing.
func (p *Pool) Cancel(jobID string) bool {
	return p.cancels.cancel(jobID)
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// Close the queue first so no new items arrive.
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && !errors.Is(err, queue.ErrClosed) {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
