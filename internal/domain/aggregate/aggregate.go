// Package aggregate combines individual model results into one
// consensus judgment under a selectable strategy.
package aggregate

import (
	"context"
	"math"
	"strings"

	"github.com/parleyai/quorum/internal/domain/model"
)

// Aggregator applies a consensus strategy to a set of model results.
type Aggregator interface {
	// Aggregate filters results below the confidence threshold and
	// combines the survivors. The soft-failure sentinels
	// (ErrInsufficientConfidence, ErrNoAgreement) are expected outcomes,
	// not system faults.
	Aggregate(ctx context.Context, results []model.ModelResult, strategy model.Strategy,
		threshold float64, task model.TaskType) (model.ConsensusResult, error)
}

// Engine is the default Aggregator implementation.
type Engine struct {
	// scoreTolerance bounds how far rounded numeric answers may differ
	// and still count as unanimous agreement. Zero means identical
	// rounded scores.
	scoreTolerance float64
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithScoreTolerance sets the numeric agreement tolerance for the
// unanimous strategy.
func WithScoreTolerance(tolerance float64) Option {
	return func(e *Engine) {
		if tolerance >= 0 {
			e.scoreTolerance = tolerance
		}
	}
}

// New creates an Engine with default configuration.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregate implements Aggregator.
func (e *Engine) Aggregate(ctx context.Context, results []model.ModelResult, strategy model.Strategy,
	threshold float64, task model.TaskType) (model.ConsensusResult, error) {
	if err := ctx.Err(); err != nil {
		return model.ConsensusResult{}, err
	}

	filtered := filterByConfidence(results, threshold)
	if len(filtered) == 0 {
		return model.ConsensusResult{}, ErrInsufficientConfidence
	}

	switch strategy {
	case model.StrategyMajority:
		return e.majority(filtered), nil
	case model.StrategyWeighted:
		return e.weighted(filtered), nil
	case model.StrategyUnanimous:
		return e.unanimous(filtered, task)
	default:
		return model.ConsensusResult{}, ErrUnknownStrategy
	}
}

// filterByConfidence drops results whose confidence is below threshold,
// preserving input order.
func filterByConfidence(results []model.ModelResult, threshold float64) []model.ModelResult {
	filtered := make([]model.ModelResult, 0, len(results))
	for _, r := range results {
		if r.Confidence >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// majority picks the single highest-confidence result. Despite the
// name this is a confidence pick, not a plurality vote over discrete
// categories; ties go to the first occurrence in filtered order.
func (e *Engine) majority(filtered []model.ModelResult) model.ConsensusResult {
	best := filtered[0]
	for _, r := range filtered[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return model.ConsensusResult{
		Response:           best.Response,
		Score:              best.Score,
		Confidence:         best.Confidence,
		Strategy:           model.StrategyMajority,
		ContributingModels: modelNames(filtered),
	}
}

// weighted averages the filtered confidences; the response and score
// come from the first filtered result. Only the confidence is averaged
// in this policy; responses are not blended.
func (e *Engine) weighted(filtered []model.ModelResult) model.ConsensusResult {
	var sum float64
	for _, r := range filtered {
		sum += r.Confidence
	}
	first := filtered[0]
	return model.ConsensusResult{
		Response:           first.Response,
		Score:              first.Score,
		Confidence:         sum / float64(len(filtered)),
		Strategy:           model.StrategyWeighted,
		ContributingModels: modelNames(filtered),
	}
}

// unanimous requires every filtered result to agree: identical rounded
// scores (within tolerance) for numeric tasks, normalized response
// equality otherwise.
func (e *Engine) unanimous(filtered []model.ModelResult, task model.TaskType) (model.ConsensusResult, error) {
	first := filtered[0]
	for _, r := range filtered[1:] {
		if !e.agrees(first, r, task) {
			return model.ConsensusResult{}, ErrNoAgreement
		}
	}

	var sum float64
	for _, r := range filtered {
		sum += r.Confidence
	}
	return model.ConsensusResult{
		Response:           first.Response,
		Score:              first.Score,
		Confidence:         sum / float64(len(filtered)),
		Strategy:           model.StrategyUnanimous,
		ContributingModels: modelNames(filtered),
	}, nil
}

func (e *Engine) agrees(a, b model.ModelResult, task model.TaskType) bool {
	if task.Numeric() {
		return math.Abs(math.Round(a.Score)-math.Round(b.Score)) <= e.scoreTolerance
	}
	return normalize(a.Response) == normalize(b.Response)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func modelNames(results []model.ModelResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Model
	}
	return names
}
