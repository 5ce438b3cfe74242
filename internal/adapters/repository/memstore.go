package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/metrics"
)

// MemStore is the in-process Store. Jobs are stored as private copies;
// readers always receive deep clones, so no caller ever holds a
// reference into the map.
type MemStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.ConsensusJob
}

// NewMemStore creates an empty in-memory job store.
func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]*model.ConsensusJob)}
}

// Create implements Store.
func (s *MemStore) Create(ctx context.Context, job *model.ConsensusJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, job.ID)
	}
	stored := job.Clone()
	if stored.Status == "" {
		stored.Status = model.StatusPending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.jobs[job.ID] = &stored

	metrics.UpdateJobsTracked(len(s.jobs))
	return nil
}

// Get implements Store.
func (s *MemStore) Get(ctx context.Context, id string) (*model.ConsensusJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := job.Clone()
	return &cp, nil
}

// MarkProcessing implements Store.
func (s *MemStore) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, job.Status)
	}
	if job.Status != model.StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.StatusProcessing)
	}
	job.Status = model.StatusProcessing
	return nil
}

// Complete implements Store.
func (s *MemStore) Complete(ctx context.Context, id string, results []model.ModelResult, consensus *model.ConsensusResult, warning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, job.Status)
	}
	job.Status = model.StatusCompleted
	job.Results = append([]model.ModelResult(nil), results...)
	job.Consensus = consensus.Clone()
	job.Warning = warning
	job.CompletedAt = time.Now()
	return nil
}

// Fail implements Store.
func (s *MemStore) Fail(ctx context.Context, id string, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, job.Status)
	}
	job.Status = model.StatusFailed
	job.Error = cause
	job.CompletedAt = time.Now()
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.jobs, id)

	metrics.UpdateJobsTracked(len(s.jobs))
	return nil
}

// Count implements Store.
func (s *MemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}

// InFlight implements Store.
func (s *MemStore) InFlight(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

// Sweep implements Store.
func (s *MemStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CompletedAt.Before(olderThan) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		metrics.UpdateJobsTracked(len(s.jobs))
	}
	return removed, nil
}
