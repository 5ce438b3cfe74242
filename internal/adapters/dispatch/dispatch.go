// Package dispatch fans one prompt out to a set of model adapters
// concurrently and collects the successful results.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/parleyai/quorum/internal/adapters/llm"
	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/logger"
	"github.com/parleyai/quorum/pkg/metrics"
)

const (
	defaultCallTimeout    = 30 * time.Second
	defaultOverallTimeout = 60 * time.Second
)

// Dispatcher runs one round of concurrent adapter invocations per job.
// Individual adapter failures are dropped, not propagated; the caller
// decides what an empty result set means.
type Dispatcher struct {
	callTimeout    time.Duration
	overallTimeout time.Duration
	log            logger.Logger
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithCallTimeout bounds each individual adapter invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.callTimeout = d
		}
	}
}

// WithOverallTimeout bounds the whole fan-out round.
func WithOverallTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.overallTimeout = d
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(log logger.Logger) Option {
	return func(dp *Dispatcher) {
		if log != nil {
			dp.log = log
		}
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		callTimeout:    defaultCallTimeout,
		overallTimeout: defaultOverallTimeout,
		log:            logger.Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch invokes every adapter concurrently with the same prompt and
// returns the successful results, ordered by adapter position. Failed
// invocations are logged and dropped. Returns ErrNoAdapters when the
// adapter set is empty; a context error when the round is cut short.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, task model.TaskType, adapters []llm.Adapter) ([]model.ModelResult, error) {
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}

	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, d.overallTimeout)
	defer cancel()

	// Results land in fixed slots so output order matches adapter order
	// regardless of completion order.
	results := make([]*model.ModelResult, len(adapters))
	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(slot int, a llm.Adapter) {
			defer wg.Done()

			cctx, ccancel := context.WithTimeout(rctx, d.callTimeout)
			defer ccancel()

			callStart := time.Now()
			res, err := a.Invoke(cctx, llm.Request{Prompt: prompt, Task: task})
			elapsed := time.Since(callStart)

			metrics.RecordAdapterCall(a.Name(), llm.Outcome(err))
			metrics.RecordAdapterLatency(a.Name(), float64(elapsed.Milliseconds()))

			if err != nil {
				d.log.Warn(cctx, "adapter invocation failed",
					logger.String("model", a.Name()),
					logger.String("outcome", llm.Outcome(err)),
					logger.Duration("elapsed", elapsed),
					logger.Error(err))
				return
			}
			results[slot] = &res
		}(i, adapter)
	}
	wg.Wait()

	collected := make([]model.ModelResult, 0, len(adapters))
	for _, res := range results {
		if res != nil {
			collected = append(collected, *res)
		}
	}

	metrics.RecordDispatchLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordDispatchResults(len(collected))

	// A cancelled round reports the context error so the worker can
	// distinguish a timed-out job from a round where every model failed
	// on its own.
	if err := ctx.Err(); err != nil {
		return collected, err
	}

	d.log.Debug(ctx, "dispatch round complete",
		logger.Int("adapters", len(adapters)),
		logger.Int("results", len(collected)),
		logger.Duration("elapsed", time.Since(start)))

	return collected, nil
}
