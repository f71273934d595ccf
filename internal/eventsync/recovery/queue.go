package recovery

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/calsync/internal/core/domain"
)

// QueueEntry is a pending retry.
type QueueEntry struct {
	Key     domain.RetryKey
	Failure domain.OperationError
}

// QueueStore holds pending retries, one per key.
type QueueStore interface {
	// Put inserts or replaces the entry for key
	Put(ctx context.Context, key domain.RetryKey, failure domain.OperationError) error

	// Delete removes the entry for key, if any
	Delete(ctx context.Context, key domain.RetryKey) error

	// List returns a snapshot of all entries, oldest failure first
	List(ctx context.Context) ([]QueueEntry, error)

	// Len returns the number of pending entries
	Len(ctx context.Context) (int, error)
}

// MemoryQueue is a process-local QueueStore. Entries are lost on restart.
type MemoryQueue struct {
	mu      sync.RWMutex
	entries map[domain.RetryKey]domain.OperationError
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[domain.RetryKey]domain.OperationError)}
}

func (q *MemoryQueue) Put(ctx context.Context, key domain.RetryKey, f domain.OperationError) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[key] = f
	return nil
}

func (q *MemoryQueue) Delete(ctx context.Context, key domain.RetryKey) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, key)
	return nil
}

func (q *MemoryQueue) List(ctx context.Context) ([]QueueEntry, error) {
	q.mu.RLock()
	entries := make([]QueueEntry, 0, len(q.entries))
	for k, f := range q.entries {
		entries = append(entries, QueueEntry{Key: k, Failure: f})
	}
	q.mu.RUnlock()

	SortEntries(entries)
	return entries, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries), nil
}

// SortEntries orders entries by failure time, then key.
func SortEntries(entries []QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].Failure.Timestamp, entries[j].Failure.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].Key.String() < entries[j].Key.String()
	})
}
