// Package repository tracks consensus jobs through their lifecycle:
// pending, processing, then exactly one terminal state.
package repository

import (
	"context"
	"time"

	"github.com/parleyai/quorum/internal/domain/model"
)

// Store is the job ledger. Transitions are monotonic: pending to
// processing, processing to completed or failed, and a terminal state
// never changes again. All methods are safe for concurrent use.
type Store interface {
	// Create registers a new pending job. ErrExists when the id is
	// already tracked.
	Create(ctx context.Context, job *model.ConsensusJob) error

	// Get returns a copy of the job. Mutating the returned value does
	// not affect the stored job. ErrNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*model.ConsensusJob, error)

	// MarkProcessing moves a pending job to processing. ErrTerminal when
	// the job already finished, ErrInvalidTransition when it is not
	// pending.
	MarkProcessing(ctx context.Context, id string) error

	// Complete finishes a job with its per-model results, the consensus
	// outcome (nil on a soft failure) and an optional warning.
	// ErrTerminal when the job already finished.
	Complete(ctx context.Context, id string, results []model.ModelResult, consensus *model.ConsensusResult, warning string) error

	// Fail finishes a job with a failure cause. ErrTerminal when the
	// job already finished.
	Fail(ctx context.Context, id string, cause string) error

	// Delete removes a job outright. ErrNotFound when the id is
	// unknown.
	Delete(ctx context.Context, id string) error

	// Count returns the number of tracked jobs.
	Count(ctx context.Context) (int, error)

	// InFlight returns the number of jobs that are pending or
	// processing.
	InFlight(ctx context.Context) (int, error)

	// Sweep removes terminal jobs whose completion time is older than
	// the cutoff and returns how many were removed.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}
