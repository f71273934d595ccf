package worker

import (
	"context"
	"log/slog"
	"time"
)

const DefaultRetryInterval = time.Minute

// RetryProcessor schedules replays of queued calendar operations.
type RetryProcessor interface {
	ProcessRetries(ctx context.Context) int
}

// Retrier periodically drains the retry queue.
type Retrier struct {
	processor RetryProcessor
	interval  time.Duration
}

// NewRetrier creates a new Retrier worker.
func NewRetrier(processor RetryProcessor, interval time.Duration) *Retrier {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return &Retrier{
		processor: processor,
		interval:  interval,
	}
}

// Start runs the retry loop until ctx is cancelled.
func (r *Retrier) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("Retry worker started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Retry worker stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Retrier) tick(ctx context.Context) {
	if n := r.processor.ProcessRetries(ctx); n > 0 {
		slog.Debug("Scheduled calendar retries", "count", n)
	}
}
