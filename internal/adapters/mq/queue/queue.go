// Package queue provides the bounded, priority-aware buffer between
// job submission and the worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Item is one queued unit of work. Jobs travel by id; the store holds
// the payload.
type Item struct {
	JobID      string
	Priority   model.Priority
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue
// semantics with priority ordering: urgent items are consumed before
// high, high before normal.
type Queue interface {
	// Enqueue adds an item to its priority lane.
	// Returns false if the lane is full or the queue is closed.
	Enqueue(ctx context.Context, item Item) bool

	// Dequeue returns a channel that yields items as they become
	// available, highest priority first. The channel is closed when the
	// queue is closed and drained, or when ctx ends.
	Dequeue(ctx context.Context) <-chan Item

	// Len returns the current number of queued items across all lanes.
	Len(ctx context.Context) int

	// Close shuts down the queue. Already-queued items remain
	// consumable; new enqueues are rejected.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue with one buffered channel per
// priority lane.
type InMemoryQueue struct {
	urgent   chan Item
	high     chan Item
	normal   chan Item
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory priority queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.urgent = make(chan Item, q.capacity)
	q.high = make(chan Item, q.capacity)
	q.normal = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// lane maps a priority to its channel. Unknown priorities land in the
// normal lane.
func (q *InMemoryQueue) lane(p model.Priority) chan Item {
	switch p {
	case model.PriorityUrgent:
		return q.urgent
	case model.PriorityHigh:
		return q.high
	default:
		return q.normal
	}
}

// Enqueue adds an item to its priority lane.
func (q *InMemoryQueue) Enqueue(ctx context.Context, item Item) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection("closed")
		return false
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}

	select {
	case q.lane(item.Priority) <- item:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejection("context_cancelled")
		return false
	default:
		metrics.RecordQueueRejection("queue_full")
		return false
	}
}

// Dequeue returns a channel that yields items, highest priority first.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		urgent, high, normal := q.urgent, q.high, q.normal
		for {
			if urgent == nil && high == nil && normal == nil {
				return
			}

			var (
				item Item
				ok   bool
			)
			// Staged selects give urgent strict preference over high,
			// and high over normal, without starving a blocked wait.
			// A drained closed lane is set to nil and dropped from the
			// selects.
			select {
			case item, ok = <-urgent:
				if !ok {
					urgent = nil
					continue
				}
			default:
				select {
				case item, ok = <-urgent:
					if !ok {
						urgent = nil
						continue
					}
				case item, ok = <-high:
					if !ok {
						high = nil
						continue
					}
				default:
					select {
					case item, ok = <-urgent:
						if !ok {
							urgent = nil
							continue
						}
					case item, ok = <-high:
						if !ok {
							high = nil
							continue
						}
					case item, ok = <-normal:
						if !ok {
							normal = nil
							continue
						}
					case <-ctx.Done():
						return
					}
				}
			}

			select {
			case out <- item:
				metrics.RecordQueueDequeue()
				q.updateGauges()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of queued items across all lanes.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.urgent) + len(q.high) + len(q.normal)
	metrics.UpdateQueueSize(size)
	return size
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.urgent) + len(q.high) + len(q.normal)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(3*q.capacity))
}

// Close shuts down the queue. Closing an already-closed queue returns
// ErrClosed.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	close(q.urgent)
	close(q.high)
	close(q.normal)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
