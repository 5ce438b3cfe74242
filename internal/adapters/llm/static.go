package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parleyai/quorum/internal/domain/model"
)

// StaticAdapter is a deterministic Adapter double: fixed response,
// score, confidence and reasoning, with optional simulated latency and
// a forced error. It is the default backend when no provider is
// configured and the workhorse of the test suite.
type StaticAdapter struct {
	name       string
	response   string
	score      float64
	confidence float64
	reasoning  string
	latency    time.Duration
	fail       error
}

// StaticOption applies a configuration option to the StaticAdapter.
type StaticOption func(*StaticAdapter)

// WithResponse sets the fixed response text.
func WithResponse(response string) StaticOption {
	return func(a *StaticAdapter) {
		a.response = response
	}
}

// WithScore sets the fixed numeric judgment.
func WithScore(score float64) StaticOption {
	return func(a *StaticAdapter) {
		a.score = score
	}
}

// WithConfidence sets the fixed confidence in [0,1].
func WithConfidence(confidence float64) StaticOption {
	return func(a *StaticAdapter) {
		if confidence >= 0 && confidence <= 1 {
			a.confidence = confidence
		}
	}
}

// WithReasoning sets the fixed reasoning text.
func WithReasoning(reasoning string) StaticOption {
	return func(a *StaticAdapter) {
		a.reasoning = reasoning
	}
}

// WithLatency simulates backend latency before answering.
func WithLatency(latency time.Duration) StaticOption {
	return func(a *StaticAdapter) {
		if latency > 0 {
			a.latency = latency
		}
	}
}

// WithFailure makes every Invoke return err.
func WithFailure(err error) StaticOption {
	return func(a *StaticAdapter) {
		a.fail = err
	}
}

// NewStatic creates a deterministic adapter with the given name.
func NewStatic(name string, opts ...StaticOption) *StaticAdapter {
	a := &StaticAdapter{
		name:       name,
		response:   "8",
		score:      8,
		confidence: 0.9,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements Adapter.
func (a *StaticAdapter) Name() string { return a.name }

// Invoke implements Adapter.
func (a *StaticAdapter) Invoke(ctx context.Context, req Request) (model.ModelResult, error) {
	start := time.Now()

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, ErrTimeout)
			}
			return model.ModelResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	if a.fail != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, a.fail)
	}

	return model.ModelResult{
		Model:      a.name,
		Response:   a.response,
		Score:      a.score,
		Confidence: a.confidence,
		Reasoning:  a.reasoning,
		TokensUsed: len(req.Prompt) / 4,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
