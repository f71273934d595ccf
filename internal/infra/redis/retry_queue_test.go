package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/calsync/internal/core/domain"
)

// Requires a disposable Redis; set CALSYNC_TEST_REDIS_URL to run.
func setupTestQueue(t *testing.T) *RetryQueue {
	t.Helper()
	url := os.Getenv("CALSYNC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping redis test. Set CALSYNC_TEST_REDIS_URL to run.")
	}

	client, err := NewClient(context.Background(), Config{URL: url, ConnectTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	q := NewRetryQueue(client, "test-"+uuid.NewString())
	t.Cleanup(func() { _ = client.rdb.Del(context.Background(), q.hashKey()).Err() })
	return q
}

func TestRetryQueue_PutListDelete(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	key := domain.NewRetryKey(domain.OperationCreate, "appt:with:colons")
	f := domain.OperationError{
		AppointmentID: key.AppointmentID,
		Operation:     domain.OperationCreate,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		Appointment:   &domain.Appointment{ID: key.AppointmentID, Treatment: "Emergency"},
	}.WithError(errors.New("rate limited"))

	if err := q.Put(ctx, key, f); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	f.RetryCount = 2
	if err := q.Put(ctx, key, f); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Key != key {
		t.Errorf("expected key %v, got %v", key, got.Key)
	}
	if got.Failure.RetryCount != 2 || got.Failure.Err == nil || got.Failure.Err.Error() != "rate limited" {
		t.Errorf("unexpected failure: %+v", got.Failure)
	}
	if got.Failure.Appointment == nil || got.Failure.Appointment.Treatment != "Emergency" {
		t.Errorf("expected payload to survive, got %+v", got.Failure.Appointment)
	}

	if err := q.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
}
