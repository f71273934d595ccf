package recovery

import (
	"sync"
	"time"

	"github.com/vietddude/calsync/internal/core/domain"
)

// DefaultErrorLogCapacity is the number of failures kept for reporting.
const DefaultErrorLogCapacity = 1000

// ErrorLog is a bounded, append-only history of operation failures.
// When full, the oldest entries are discarded.
type ErrorLog struct {
	mu       sync.RWMutex
	entries  []domain.OperationError
	capacity int
}

// NewErrorLog creates a log holding at most capacity entries.
func NewErrorLog(capacity int) *ErrorLog {
	if capacity <= 0 {
		capacity = DefaultErrorLogCapacity
	}
	return &ErrorLog{capacity: capacity}
}

// Append adds an entry, trimming the oldest ones past capacity.
func (l *ErrorLog) Append(e domain.OperationError) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		kept := make([]domain.OperationError, l.capacity)
		copy(kept, l.entries[len(l.entries)-l.capacity:])
		l.entries = kept
	}
}

// Len returns the number of retained entries.
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// CountByOperation returns the number of retained entries per operation.
func (l *ErrorLog) CountByOperation() map[domain.Operation]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[domain.Operation]int)
	for _, e := range l.entries {
		counts[e.Operation]++
	}
	return counts
}

// Recent returns up to limit of the newest entries younger than window.
func (l *ErrorLog) Recent(now time.Time, window time.Duration, limit int) []domain.OperationError {
	l.mu.RLock()
	defer l.mu.RUnlock()

	recent := make([]domain.OperationError, 0, limit)
	for _, e := range l.entries {
		if now.Sub(e.Timestamp) < window {
			recent = append(recent, e)
		}
	}
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	return recent
}
