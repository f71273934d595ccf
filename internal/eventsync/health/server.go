package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/eventsync/recovery"
	"github.com/vietddude/calsync/internal/infra/calendar"
	"github.com/vietddude/calsync/internal/infra/storage"
)

const (
	pendingWarning     = "Appointment saved, but calendar sync is pending or unavailable."
	maxCredentialsSize = 64 << 10
	maxAppointmentSize = 64 << 10
)

// Syncer is the orchestrator surface served over HTTP.
type Syncer interface {
	GetSyncStatus(ctx context.Context) domain.SyncStatus
	ProcessRetries(ctx context.Context) int
	SyncAppointment(ctx context.Context, appt domain.Appointment, existingEventID string) (string, bool)
	DeleteAppointmentEvent(ctx context.Context, appointmentID, eventID string) bool
	TestConnection(ctx context.Context) (calendar.Result, error)
}

// SyncResponse reports the calendar outcome of an appointment call.
type SyncResponse struct {
	AppointmentID  string `json:"appointment_id"`
	CalendarSynced bool   `json:"calendar_synced"`
	EventID        string `json:"event_id,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

// Server provides HTTP endpoints for health, status and sync call sites.
type Server struct {
	syncer       Syncer
	appointments storage.AppointmentRepository
	server       *http.Server
}

// NewServer creates a new health server.
func NewServer(syncer Syncer, appointments storage.AppointmentRepository, port int) *Server {
	s := &Server{
		syncer:       syncer,
		appointments: appointments,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Routes(),
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/retries", s.handleRetries)
	r.Post("/appointments/{id}/sync", s.handleSync)
	r.Delete("/appointments/{id}/event", s.handleDeleteEvent)

	r.Route("/admin/calendar", func(r chi.Router) {
		r.Post("/test", s.handleTestConnection)
		r.Post("/validate", s.handleValidateCredentials)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := Evaluate(s.syncer.GetSyncStatus(r.Context()))
	code := http.StatusOK
	if report.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.syncer.GetSyncStatus(r.Context()))
}

func (s *Server) handleRetries(w http.ResponseWriter, r *http.Request) {
	n := s.syncer.ProcessRetries(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]int{"scheduled": n})
}

// handleSync syncs a stored appointment. A JSON body, when present, is saved
// first so booking flows can push the appointment and sync it in one call.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	appt, ok := s.upsertAppointment(w, r)
	if !ok {
		return
	}

	resp := SyncResponse{AppointmentID: appt.ID}
	eventID, synced := s.syncer.SyncAppointment(r.Context(), *appt, appt.CalendarEventID)
	if !synced {
		resp.Warning = pendingWarning
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.CalendarSynced, resp.EventID = true, eventID
	if eventID != appt.CalendarEventID {
		if err := s.appointments.SetCalendarEventID(r.Context(), appt.ID, eventID); err != nil {
			slog.Error("Failed to store calendar event id", "appointment_id", appt.ID, "event_id", eventID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	appt, ok := s.loadAppointment(w, r)
	if !ok {
		return
	}

	resp := SyncResponse{AppointmentID: appt.ID, CalendarSynced: true}
	if appt.CalendarEventID == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if !s.syncer.DeleteAppointmentEvent(r.Context(), appt.ID, appt.CalendarEventID) {
		resp.CalendarSynced = false
		resp.EventID = appt.CalendarEventID
		resp.Warning = pendingWarning
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if err := s.appointments.SetCalendarEventID(r.Context(), appt.ID, ""); err != nil {
		slog.Error("Failed to clear calendar event id", "appointment_id", appt.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.TestConnection(r.Context())
	if err != nil {
		slog.Warn("Calendar connection test failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   recovery.UserMessage(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"event_id": res.ID,
		"message":  "Calendar connection successful. Test event created and deleted.",
	})
}

func (s *Server) handleValidateCredentials(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCredentialsSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"valid": false, "error": "credentials too large"})
		return
	}
	if err := calendar.ValidateCredentials(raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) upsertAppointment(w http.ResponseWriter, r *http.Request) (*domain.Appointment, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAppointmentSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "appointment too large"})
		return nil, false
	}
	if strings.TrimSpace(string(raw)) == "" {
		return s.loadAppointment(w, r)
	}

	var appt domain.Appointment
	if err := json.Unmarshal(raw, &appt); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid appointment json"})
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if appt.ID != "" && appt.ID != id {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "appointment id does not match path"})
		return nil, false
	}
	appt.ID = id

	if appt.CalendarEventID == "" {
		existing, err := s.appointments.Get(r.Context(), id)
		switch {
		case err == nil:
			appt.CalendarEventID = existing.CalendarEventID
		case !errors.Is(err, domain.ErrAppointmentNotFound):
			slog.Error("Failed to load appointment", "appointment_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load appointment"})
			return nil, false
		}
	}

	if err := s.appointments.Save(r.Context(), &appt); err != nil {
		slog.Error("Failed to save appointment", "appointment_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save appointment"})
		return nil, false
	}
	return &appt, true
}

func (s *Server) loadAppointment(w http.ResponseWriter, r *http.Request) (*domain.Appointment, bool) {
	id := chi.URLParam(r, "id")
	appt, err := s.appointments.Get(r.Context(), id)
	if errors.Is(err, domain.ErrAppointmentNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment not found"})
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to load appointment", "appointment_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load appointment"})
		return nil, false
	}
	return appt, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode json response", "error", err)
	}
}
