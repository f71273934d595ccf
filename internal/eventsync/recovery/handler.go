package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/eventsync/metrics"
)

const (
	recentErrorsWindow = 24 * time.Hour
	recentErrorsLimit  = 10
)

// RetryFunc replays a queued operation. It reports true when the operation
// finally succeeded.
type RetryFunc func(ctx context.Context, failure domain.OperationError) (bool, error)

// Stats summarizes the error log and retry queue.
type Stats struct {
	TotalErrors       int                      `json:"total_errors"`
	ErrorsByOperation map[domain.Operation]int `json:"errors_by_operation"`
	RecentErrors      []domain.OperationError  `json:"recent_errors"`
	QueueSize         int                      `json:"queue_size"`
}

// Handler owns the error log and the retry queue.
type Handler struct {
	store  QueueStore
	errLog *ErrorLog
	clock  Clock
	jitter JitterSource
	log    *slog.Logger

	// Retry tasks run under ctx so Shutdown can abort pending waits.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	tasks    []*conc.WaitGroup
	inflight map[domain.RetryKey]struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithJitter replaces the jitter source.
func WithJitter(j JitterSource) Option {
	return func(h *Handler) { h.jitter = j }
}

// WithLogger sets the logger used for failure records.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithErrorLogCapacity bounds the error log.
func WithErrorLogCapacity(n int) Option {
	return func(h *Handler) { h.errLog = NewErrorLog(n) }
}

// NewHandler creates a handler over store. A nil store means an in-memory queue.
func NewHandler(store QueueStore, opts ...Option) *Handler {
	if store == nil {
		store = NewMemoryQueue()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		store:  store,
		errLog: NewErrorLog(DefaultErrorLogCapacity),
		clock:  SystemClock{},
		jitter: defaultJitter,
		log:    slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[domain.RetryKey]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "recovery")
	return h
}

// RecordFailure appends a timestamped copy of f to the error log and emits a
// structured record. The log copy drops the replay payload, which carries
// patient contact details. It never fails.
func (h *Handler) RecordFailure(f domain.OperationError) {
	entry := f.WithError(f.Err)
	entry.Appointment = nil
	entry.Timestamp = h.clock.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	h.errLog.Append(entry)

	failure := Classify(entry.Err)
	metrics.CalendarErrors.WithLabelValues(string(entry.Operation), failure.Kind.String()).Inc()

	h.log.Error("Calendar operation failed",
		"operation", entry.Operation,
		"appointment_id", entry.AppointmentID,
		"timestamp", entry.Timestamp.Format(time.RFC3339),
		"retry_count", entry.RetryCount,
		errorDetail(failure, entry.ErrorMsg),
	)
}

// errorDetail keeps the fields useful for diagnosis and drops raw bodies.
func errorDetail(f Failure, fallback string) slog.Attr {
	msg := f.Message
	if msg == "" {
		msg = fallback
	}
	attrs := []any{
		slog.String("kind", f.Kind.String()),
		slog.String("message", msg),
	}
	if f.Code != 0 {
		attrs = append(attrs, slog.Int("code", f.Code))
	}
	if f.Status != "" {
		attrs = append(attrs, slog.String("status", f.Status))
	}
	if len(f.Reasons) > 0 {
		attrs = append(attrs, slog.Any("reasons", f.Reasons))
	}
	return slog.Group("error", attrs...)
}

// Enqueue inserts or replaces the pending retry for key.
func (h *Handler) Enqueue(ctx context.Context, key domain.RetryKey, f domain.OperationError) {
	if err := h.store.Put(ctx, key, f); err != nil {
		h.log.Error("Failed to add to retry queue", "key", key.String(), "error", err)
		return
	}
	h.log.Info("Added to retry queue", "key", key.String(), "retry_count", f.RetryCount)
	h.refreshQueueGauge(ctx)
}

// Drain schedules one retry task per queued entry and returns without waiting
// for them. Entries past cfg.MaxRetries are dropped and logged as terminal.
// Keys whose previous retry is still running are skipped. It returns the
// number of scheduled tasks.
//
// A failure enqueued for a key while its retry is in flight may be overwritten
// when that retry completes (last write wins).
func (h *Handler) Drain(ctx context.Context, fn RetryFunc, cfg RetryConfig) int {
	entries, err := h.store.List(ctx)
	if err != nil {
		h.log.Error("Failed to list retry queue", "error", err)
		return 0
	}

	wg := &conc.WaitGroup{}
	scheduled := 0
	for _, entry := range entries {
		if h.inFlight(entry.Key) {
			h.log.Debug("Retry already running, skipping", "key", entry.Key.String())
			continue
		}
		attempt := entry.Failure.RetryCount + 1

		if cfg.Exhausted(attempt) {
			h.log.Error("Max retries exceeded, removing from queue",
				"key", entry.Key.String(), "max_retries", cfg.MaxRetries)
			h.remove(ctx, entry.Key)

			terminal := entry.Failure.WithError(
				fmt.Errorf("%w (%d)", domain.ErrMaxRetriesExceeded, cfg.MaxRetries),
			)
			terminal.ID = ""
			terminal.RetryCount = attempt
			h.RecordFailure(terminal)
			metrics.RetryAttempts.WithLabelValues(string(entry.Key.Operation), "exhausted").Inc()
			continue
		}

		delay := cfg.Delay(attempt, h.jitter())
		h.markInFlight(entry.Key)
		wg.Go(func() {
			defer h.clearInFlight(entry.Key)
			h.retry(h.ctx, entry, attempt, delay, fn)
		})
		scheduled++
	}

	h.track(wg)
	h.refreshQueueGauge(ctx)
	return scheduled
}

func (h *Handler) retry(
	ctx context.Context,
	entry QueueEntry,
	attempt int,
	delay time.Duration,
	fn RetryFunc,
) {
	select {
	case <-ctx.Done():
		return
	case <-h.clock.After(delay):
	}

	op := string(entry.Key.Operation)
	ok, err := invoke(ctx, fn, entry.Failure)
	if ok && err == nil {
		h.log.Info("Retry successful", "key", entry.Key.String(), "attempt", attempt)
		metrics.RetryAttempts.WithLabelValues(op, "success").Inc()
		h.remove(ctx, entry.Key)
		h.refreshQueueGauge(ctx)
		return
	}

	metrics.RetryAttempts.WithLabelValues(op, "failed").Inc()
	updated := entry.Failure
	updated.RetryCount = attempt
	if err != nil {
		updated = updated.WithError(err)
		h.log.Warn("Retry failed", "key", entry.Key.String(), "attempt", attempt, "error", err)
		h.RecordFailure(updated)
	}
	if err := h.store.Put(ctx, entry.Key, updated); err != nil {
		h.log.Error("Failed to update retry entry", "key", entry.Key.String(), "error", err)
	}
}

// invoke converts a panicking retry function into a failed attempt.
func invoke(ctx context.Context, fn RetryFunc, f domain.OperationError) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("retry panicked: %v", r)
		}
	}()
	return fn(ctx, f)
}

func (h *Handler) remove(ctx context.Context, key domain.RetryKey) {
	if err := h.store.Delete(ctx, key); err != nil {
		h.log.Error("Failed to remove from retry queue", "key", key.String(), "error", err)
	}
}

func (h *Handler) inFlight(key domain.RetryKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.inflight[key]
	return ok
}

func (h *Handler) markInFlight(key domain.RetryKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inflight[key] = struct{}{}
}

func (h *Handler) clearInFlight(key domain.RetryKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, key)
}

func (h *Handler) track(wg *conc.WaitGroup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, wg)
}

// Wait blocks until every scheduled retry task has finished.
func (h *Handler) Wait() {
	h.mu.Lock()
	tasks := h.tasks
	h.tasks = nil
	h.mu.Unlock()

	for _, wg := range tasks {
		wg.Wait()
	}
}

// Shutdown aborts pending retry waits and waits for running tasks.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns error and queue statistics. It does not mutate state.
func (h *Handler) Stats(ctx context.Context) Stats {
	size, err := h.store.Len(ctx)
	if err != nil {
		h.log.Warn("Failed to read retry queue size", "error", err)
	}
	return Stats{
		TotalErrors:       h.errLog.Len(),
		ErrorsByOperation: h.errLog.CountByOperation(),
		RecentErrors:      h.errLog.Recent(h.clock.Now(), recentErrorsWindow, recentErrorsLimit),
		QueueSize:         size,
	}
}

func (h *Handler) refreshQueueGauge(ctx context.Context) {
	if size, err := h.store.Len(ctx); err == nil {
		metrics.RetryQueueSize.Set(float64(size))
	}
}
