// Package dedupe defines the idempotency index used to answer repeat
// submissions with the original job id.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Index maps client idempotency keys to job ids so a retried submit
// returns the job created by the first attempt.
type Index interface {
	// SeenOrRecord atomically looks up key. If the key is known it
	// returns the recorded job id and true; otherwise it records
	// key -> jobID and returns jobID and false.
	SeenOrRecord(ctx context.Context, key, jobID string) (string, bool)

	// Forget removes a key, allowing the next submit with it to create
	// a fresh job. Used when a recorded submission failed to enqueue.
	Forget(ctx context.Context, key string)

	Size() int64
}

// entry is a single key in the eviction list.
type entry struct {
	key   string
	jobID string
	prev  *entry
	next  *entry
}

// inMemoryIndex implements Index with a bounded map plus an intrusive
// list evicting the oldest key once maxSize is reached. maxSize <= 0
// means unbounded.
type inMemoryIndex struct {
	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently recorded
	tail    *entry // oldest, evicted first
	maxSize int
	size    atomic.Int64
}

// Option applies a configuration option to the index.
type Option func(*inMemoryIndex)

// WithMaxSize bounds the number of keys kept in memory.
func WithMaxSize(size int) Option {
	return func(i *inMemoryIndex) {
		i.maxSize = size
	}
}

// NewInMemoryIndex creates a new in-memory idempotency index.
func NewInMemoryIndex(opts ...Option) Index {
	i := &inMemoryIndex{
		entries: make(map[string]*entry),
		maxSize: 10000, // default max size
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SeenOrRecord implements Index.
func (i *inMemoryIndex) SeenOrRecord(ctx context.Context, key, jobID string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if e, ok := i.entries[key]; ok {
		return e.jobID, true
	}

	if i.maxSize > 0 && len(i.entries) >= i.maxSize {
		i.evictOldest()
	}

	e := &entry{key: key, jobID: jobID}
	e.next = i.head
	if i.head != nil {
		i.head.prev = e
	}
	i.head = e
	if i.tail == nil {
		i.tail = e
	}
	i.entries[key] = e
	i.size.Add(1)
	return jobID, false
}

// Forget implements Index.
func (i *inMemoryIndex) Forget(ctx context.Context, key string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, ok := i.entries[key]
	if !ok {
		return
	}
	i.unlink(e)
	delete(i.entries, key)
	i.size.Add(-1)
}

// Size returns the current number of recorded keys.
func (i *inMemoryIndex) Size() int64 {
	return i.size.Load()
}

// evictOldest removes the tail entry. Must be called with i.mu held.
func (i *inMemoryIndex) evictOldest() {
	if i.tail == nil {
		return
	}
	victim := i.tail
	i.unlink(victim)
	delete(i.entries, victim.key)
	i.size.Add(-1)
}

// unlink removes e from the list. Must be called with i.mu held.
func (i *inMemoryIndex) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		i.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		i.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
