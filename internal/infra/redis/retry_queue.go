package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/eventsync/recovery"
)

// RetryQueue implements recovery.QueueStore as one Redis hash per calendar.
// Fields are RetryKey strings, values are JSON-encoded failures.
type RetryQueue struct {
	rdb        *redis.Client
	calendarID string
}

var _ recovery.QueueStore = (*RetryQueue)(nil)

// NewRetryQueue creates a Redis-backed retry queue for one calendar.
func NewRetryQueue(client *Client, calendarID string) *RetryQueue {
	return &RetryQueue{
		rdb:        client.rdb,
		calendarID: calendarID,
	}
}

func (q *RetryQueue) hashKey() string {
	return fmt.Sprintf("calsync:retry_queue:%s", q.calendarID)
}

// Put inserts or replaces the entry for key.
func (q *RetryQueue) Put(ctx context.Context, key domain.RetryKey, f domain.OperationError) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal retry entry: %w", err)
	}
	if err := q.rdb.HSet(ctx, q.hashKey(), key.String(), data).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

// Delete removes the entry for key.
func (q *RetryQueue) Delete(ctx context.Context, key domain.RetryKey) error {
	if err := q.rdb.HDel(ctx, q.hashKey(), key.String()).Err(); err != nil {
		return fmt.Errorf("hdel failed: %w", err)
	}
	return nil
}

// List returns every entry, oldest failure first. Undecodable fields are
// skipped and logged.
func (q *RetryQueue) List(ctx context.Context) ([]recovery.QueueEntry, error) {
	fields, err := q.rdb.HGetAll(ctx, q.hashKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	entries := make([]recovery.QueueEntry, 0, len(fields))
	for field, raw := range fields {
		key, err := domain.ParseRetryKey(field)
		if err != nil {
			slog.Warn("Skipping retry entry with invalid key", "field", field, "error", err)
			continue
		}

		var f domain.OperationError
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			slog.Warn("Skipping undecodable retry entry", "key", field, "error", err)
			continue
		}
		if f.ErrorMsg != "" {
			f.Err = errors.New(f.ErrorMsg)
		}
		entries = append(entries, recovery.QueueEntry{Key: key, Failure: f})
	}

	recovery.SortEntries(entries)
	return entries, nil
}

// Len returns the number of pending entries.
func (q *RetryQueue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.HLen(ctx, q.hashKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("hlen failed: %w", err)
	}
	return int(n), nil
}
