package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/eventsync/metrics"
	"github.com/vietddude/calsync/internal/eventsync/recovery"
	"github.com/vietddude/calsync/internal/infra/calendar"
)

// State is the connection state of the calendar client.
type State int

const (
	StateUninitialized State = iota
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Connector builds a calendar client. It is called lazily until it succeeds.
type Connector func(ctx context.Context) (calendar.Client, error)

// EventIDSink stores the event id produced by a create that only succeeded
// on retry, when no caller is waiting for it.
type EventIDSink interface {
	SetCalendarEventID(ctx context.Context, appointmentID, eventID string) error
}

// Config holds the orchestrator settings.
type Config struct {
	CalendarID string
	Location   string
	Retry      recovery.RetryConfig
}

// Service projects appointment mutations onto the calendar. Public operations
// never return errors for calendar failures: they record the failure, queue it
// when it is transient and report a zero result.
type Service struct {
	cfg      Config
	connect  Connector
	recovery *recovery.Handler
	sink     EventIDSink
	clock    recovery.Clock
	log      *slog.Logger

	connMu sync.Mutex

	mu       sync.RWMutex
	state    State
	client   calendar.Client
	lastSync time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEventIDSink sets where ids of events created on retry are stored.
func WithEventIDSink(sink EventIDSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithClock replaces the wall clock used for sync timestamps.
func WithClock(c recovery.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates an orchestrator. A nil handler gets an in-memory one.
func NewService(connect Connector, handler *recovery.Handler, cfg Config, opts ...Option) *Service {
	if handler == nil {
		handler = recovery.NewHandler(nil)
	}
	if cfg.Location == "" {
		cfg.Location = calendar.DefaultLocation
	}
	if cfg.Retry == (recovery.RetryConfig{}) {
		cfg.Retry = recovery.DefaultRetryConfig
	}

	s := &Service{
		cfg:      cfg,
		connect:  connect,
		recovery: handler,
		clock:    recovery.SystemClock{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "orchestrator")
	return s
}

// State returns the current connection state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize connects the calendar client. A failure is recorded and leaves
// the service in StateFailed; the next operation tries again.
func (s *Service) Initialize(ctx context.Context) bool {
	if _, err := s.dial(ctx); err != nil {
		s.recovery.RecordFailure(domain.OperationError{Operation: domain.OperationCreate}.WithError(err))
		return false
	}
	return true
}

// CreateAppointmentEvent writes a new event for appt and returns its id.
func (s *Service) CreateAppointmentEvent(ctx context.Context, appt domain.Appointment) (string, bool) {
	res, err := s.doCreate(ctx, appt)
	if err != nil {
		s.fail(ctx, domain.OperationError{
			AppointmentID: appt.ID,
			Operation:     domain.OperationCreate,
			Appointment:   &appt,
		}.WithError(err))
		return "", false
	}
	s.log.Info("Calendar event created", "appointment_id", appt.ID, "event_id", res.ID)
	return res.ID, true
}

// UpdateAppointmentEvent rewrites event eventID from appt.
func (s *Service) UpdateAppointmentEvent(ctx context.Context, appt domain.Appointment, eventID string) bool {
	if _, err := s.doUpdate(ctx, appt, eventID); err != nil {
		s.fail(ctx, domain.OperationError{
			AppointmentID: appt.ID,
			Operation:     domain.OperationUpdate,
			Appointment:   &appt,
			EventID:       eventID,
		}.WithError(err))
		return false
	}
	s.log.Info("Calendar event updated", "appointment_id", appt.ID, "event_id", eventID)
	return true
}

// DeleteAppointmentEvent removes event eventID belonging to appointmentID.
func (s *Service) DeleteAppointmentEvent(ctx context.Context, appointmentID, eventID string) bool {
	if err := s.doDelete(ctx, eventID); err != nil {
		s.fail(ctx, domain.OperationError{
			AppointmentID: appointmentID,
			Operation:     domain.OperationDelete,
			EventID:       eventID,
		}.WithError(err))
		return false
	}
	s.log.Info("Calendar event deleted", "appointment_id", appointmentID, "event_id", eventID)
	return true
}

// SyncAppointment updates the existing event when one is known and creates
// one otherwise. It returns the event id on success.
func (s *Service) SyncAppointment(ctx context.Context, appt domain.Appointment, existingEventID string) (string, bool) {
	if existingEventID != "" {
		if !s.UpdateAppointmentEvent(ctx, appt, existingEventID) {
			return "", false
		}
		return existingEventID, true
	}
	return s.CreateAppointmentEvent(ctx, appt)
}

// GetSyncStatus returns a snapshot of connection, error and queue state.
func (s *Service) GetSyncStatus(ctx context.Context) domain.SyncStatus {
	stats := s.recovery.Stats(ctx)

	s.mu.RLock()
	state, lastSync := s.state, s.lastSync
	s.mu.RUnlock()

	return domain.SyncStatus{
		IsConnected:       state == StateConnected,
		State:             state.String(),
		CalendarID:        s.cfg.CalendarID,
		LastSync:          lastSync,
		TotalErrors:       stats.TotalErrors,
		ErrorsByOperation: stats.ErrorsByOperation,
		RecentErrors:      stats.RecentErrors,
		QueueSize:         stats.QueueSize,
	}
}

// ProcessRetries schedules a replay of every queued operation and returns
// the number scheduled. Replays run in the background.
func (s *Service) ProcessRetries(ctx context.Context) int {
	return s.recovery.Drain(ctx, s.replay, s.cfg.Retry)
}

// WaitForRetries blocks until scheduled replays have finished.
func (s *Service) WaitForRetries() {
	s.recovery.Wait()
}

// TestConnection writes a short test event and deletes it again.
func (s *Service) TestConnection(ctx context.Context) (calendar.Result, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return calendar.Result{}, fmt.Errorf("connect calendar: %w", err)
	}

	res, err := client.Insert(ctx, calendar.TestEvent(s.clock.Now(), s.cfg.Location))
	if err != nil {
		return calendar.Result{}, fmt.Errorf("create test event: %w", err)
	}
	if err := client.Delete(ctx, res.ID); err != nil {
		return res, fmt.Errorf("delete test event %s: %w", res.ID, err)
	}
	s.log.Info("Calendar connection test passed", "event_id", res.ID)
	return res, nil
}

// Shutdown aborts pending retry waits.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.recovery.Shutdown(ctx)
}

// replay re-runs a queued operation directly against the client so that a
// failing replay updates its own entry instead of enqueueing a fresh one.
func (s *Service) replay(ctx context.Context, f domain.OperationError) (bool, error) {
	switch f.Operation {
	case domain.OperationCreate:
		if f.Appointment == nil {
			return false, domain.ErrMissingPayload
		}
		res, err := s.doCreate(ctx, *f.Appointment)
		if err != nil {
			return false, err
		}
		if s.sink != nil {
			if err := s.sink.SetCalendarEventID(ctx, f.AppointmentID, res.ID); err != nil {
				s.log.Error("Failed to store event id of retried create",
					"appointment_id", f.AppointmentID, "event_id", res.ID, "error", err)
			}
		}
		return true, nil

	case domain.OperationUpdate:
		if f.Appointment == nil {
			return false, domain.ErrMissingPayload
		}
		_, err := s.doUpdate(ctx, *f.Appointment, f.EventID)
		return err == nil, err

	case domain.OperationDelete:
		err := s.doDelete(ctx, f.EventID)
		return err == nil, err
	}
	return false, fmt.Errorf("unknown operation %q", f.Operation)
}

func (s *Service) doCreate(ctx context.Context, appt domain.Appointment) (res calendar.Result, err error) {
	defer s.guard(domain.OperationCreate, time.Now(), &err)

	client, err := s.dial(ctx)
	if err != nil {
		return calendar.Result{}, err
	}
	ev, err := calendar.BuildEvent(appt, s.cfg.Location)
	if err != nil {
		return calendar.Result{}, err
	}
	res, err = client.Insert(ctx, ev)
	if err != nil {
		return calendar.Result{}, err
	}
	s.markSynced()
	return res, nil
}

func (s *Service) doUpdate(ctx context.Context, appt domain.Appointment, eventID string) (res calendar.Result, err error) {
	defer s.guard(domain.OperationUpdate, time.Now(), &err)

	if eventID == "" {
		return calendar.Result{}, fmt.Errorf("%w: missing event id", domain.ErrInvalidAppointment)
	}
	client, err := s.dial(ctx)
	if err != nil {
		return calendar.Result{}, err
	}
	ev, err := calendar.BuildEvent(appt, s.cfg.Location)
	if err != nil {
		return calendar.Result{}, err
	}
	// A missing event surfaces as not found before any write.
	if _, err := client.Get(ctx, eventID); err != nil {
		return calendar.Result{}, err
	}
	res, err = client.Update(ctx, eventID, ev)
	if err != nil {
		return calendar.Result{}, err
	}
	s.markSynced()
	return res, nil
}

func (s *Service) doDelete(ctx context.Context, eventID string) (err error) {
	defer s.guard(domain.OperationDelete, time.Now(), &err)

	if eventID == "" {
		return fmt.Errorf("%w: missing event id", domain.ErrInvalidAppointment)
	}
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	if err := client.Delete(ctx, eventID); err != nil {
		return err
	}
	s.markSynced()
	return nil
}

// guard turns a panicking client into an error and records call metrics.
func (s *Service) guard(op domain.Operation, start time.Time, errp *error) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("calendar client panicked: %v", r)
	}

	metrics.CalendarLatency.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	result := "success"
	if *errp != nil {
		result = "failure"
	}
	metrics.CalendarOperations.WithLabelValues(string(op), result).Inc()
}

// fail records f and queues it when the cause is transient.
func (s *Service) fail(ctx context.Context, f domain.OperationError) {
	f.Timestamp = s.clock.Now()
	s.recovery.RecordFailure(f)
	if recovery.IsRetryable(f.Err) {
		s.recovery.Enqueue(ctx, f.Key(), f)
	}
}

func (s *Service) markSynced() {
	now := s.clock.Now()
	s.mu.Lock()
	s.lastSync = now
	s.mu.Unlock()
}

// dial returns the connected client, connecting first when needed.
func (s *Service) dial(ctx context.Context) (calendar.Client, error) {
	s.mu.RLock()
	client, state := s.client, s.state
	s.mu.RUnlock()
	if state == StateConnected && client != nil {
		return client, nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.mu.RLock()
	client, state = s.client, s.state
	s.mu.RUnlock()
	if state == StateConnected && client != nil {
		return client, nil
	}

	if s.connect == nil {
		return nil, s.setFailed(domain.ErrNotConnected)
	}
	client, err := s.connect(ctx)
	if err == nil && client == nil {
		err = domain.ErrNotConnected
	}
	if err != nil {
		return nil, s.setFailed(err)
	}

	s.mu.Lock()
	s.client, s.state = client, StateConnected
	s.mu.Unlock()
	metrics.CalendarConnected.Set(1)
	s.log.Info("Calendar connected", "calendar_id", s.cfg.CalendarID)
	return client, nil
}

func (s *Service) setFailed(err error) error {
	s.mu.Lock()
	s.client, s.state = nil, StateFailed
	s.mu.Unlock()
	metrics.CalendarConnected.Set(0)

	if !errors.Is(err, domain.ErrNotConnected) {
		err = fmt.Errorf("connect calendar: %w", err)
	}
	s.log.Warn("Calendar connection failed", "error", err)
	return err
}
