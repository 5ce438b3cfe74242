// Package llm defines the uniform capability for invoking one backing
// language model, plus the concrete provider implementations.
package llm

import (
	"context"
	"errors"

	"github.com/parleyai/quorum/internal/domain/model"
)

// Request is one prompt bound for a single model. The call deadline
// arrives as a context deadline set by the dispatcher.
type Request struct {
	Prompt string
	Task   model.TaskType
}

// Adapter wraps one backing model. Implementations hold no shared
// mutable state and must be safe to invoke concurrently; they must
// never block past the context deadline.
type Adapter interface {
	// Name returns the model identifier, unique within a dispatch.
	Name() string

	// Invoke sends the prompt and returns the model's judgment. On
	// success the result confidence is in [0,1] and the response is
	// well-formed for the requested task type.
	Invoke(ctx context.Context, req Request) (model.ModelResult, error)
}

// Sentinel kinds for adapter failures. All are recoverable at the
// dispatcher level; a single adapter failure never aborts a job.
var (
	ErrTimeout         = errors.New("adapter call timed out")
	ErrUnavailable     = errors.New("model backend unavailable")
	ErrInvalidResponse = errors.New("model returned an unparseable response")
)

// Outcome classifies an Invoke error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "error"
	}
}

// Registry holds the configured adapters in registration order and
// resolves per-request model allowlists.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry creates a registry over the given adapters. Adapters with
// duplicate names keep the first registration.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byName: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, exists := r.byName[a.Name()]; exists {
			continue
		}
		r.adapters = append(r.adapters, a)
		r.byName[a.Name()] = a
	}
	return r
}

// Select returns the adapters matching names, in registration order.
// An empty allowlist selects every configured adapter; unknown names
// are skipped.
func (r *Registry) Select(names []string) []Adapter {
	if len(names) == 0 {
		return append([]Adapter(nil), r.adapters...)
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	selected := make([]Adapter, 0, len(names))
	for _, a := range r.adapters {
		if allowed[a.Name()] {
			selected = append(selected, a)
		}
	}
	return selected
}

// Names returns the configured model identifiers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}
