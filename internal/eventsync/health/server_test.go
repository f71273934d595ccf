package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/infra/calendar"
	"github.com/vietddude/calsync/internal/infra/storage/memory"
)

// =============================================================================
// Mocks
// =============================================================================

type mockSyncer struct {
	status    domain.SyncStatus
	syncID    string
	syncOK    bool
	deleteOK  bool
	testErr   error
	scheduled int

	syncedWith  string
	deletedWith string
}

func (m *mockSyncer) GetSyncStatus(ctx context.Context) domain.SyncStatus { return m.status }

func (m *mockSyncer) ProcessRetries(ctx context.Context) int { return m.scheduled }

func (m *mockSyncer) SyncAppointment(ctx context.Context, appt domain.Appointment, existing string) (string, bool) {
	m.syncedWith = existing
	return m.syncID, m.syncOK
}

func (m *mockSyncer) DeleteAppointmentEvent(ctx context.Context, appointmentID, eventID string) bool {
	m.deletedWith = eventID
	return m.deleteOK
}

func (m *mockSyncer) TestConnection(ctx context.Context) (calendar.Result, error) {
	if m.testErr != nil {
		return calendar.Result{}, m.testErr
	}
	return calendar.Result{ID: "evt-test"}, nil
}

func newTestServer(syncer *mockSyncer) (http.Handler, *memory.AppointmentRepo) {
	repo := memory.NewAppointmentRepo()
	_ = repo.Save(context.Background(), &domain.Appointment{
		ID: "A1", PatientName: "Ravi", Treatment: "Root Canal", Date: "2024-01-15", Time: "10:00 AM",
	})
	return NewServer(syncer, repo, 0).Routes(), repo
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json response: %v", err)
		}
	}
	return rec, out
}

// =============================================================================
// Tests
// =============================================================================

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		status domain.SyncStatus
		want   SystemStatus
	}{
		{"connected and idle", domain.SyncStatus{IsConnected: true, State: "connected"}, StatusHealthy},
		{"pending retries", domain.SyncStatus{IsConnected: true, State: "connected", QueueSize: 2}, StatusDegraded},
		{"not yet connected", domain.SyncStatus{State: "uninitialized"}, StatusDegraded},
		{"connection failed", domain.SyncStatus{State: "failed", QueueSize: 1}, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.status).Status; got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestServer_Health(t *testing.T) {
	syncer := &mockSyncer{status: domain.SyncStatus{State: "failed"}}
	h, _ := newTestServer(syncer)

	rec, body := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("expected critical, got %v", body["status"])
	}

	syncer.status = domain.SyncStatus{IsConnected: true, State: "connected"}
	rec, body = do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != string(StatusHealthy) {
		t.Errorf("expected healthy 200, got %d %v", rec.Code, body)
	}
}

func TestServer_Status(t *testing.T) {
	syncer := &mockSyncer{status: domain.SyncStatus{
		IsConnected:       true,
		State:             "connected",
		CalendarID:        "primary",
		QueueSize:         1,
		TotalErrors:       4,
		ErrorsByOperation: map[domain.Operation]int{domain.OperationCreate: 4},
	}}
	h, _ := newTestServer(syncer)

	rec, body := do(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["calendar_id"] != "primary" || body["queue_size"] != float64(1) {
		t.Errorf("unexpected body: %v", body)
	}
	byOp, _ := body["errors_by_operation"].(map[string]any)
	if byOp["create"] != float64(4) {
		t.Errorf("unexpected per-operation errors: %v", byOp)
	}
}

func TestServer_Retries(t *testing.T) {
	h, _ := newTestServer(&mockSyncer{scheduled: 3})

	rec, body := do(t, h, http.MethodPost, "/retries", "")
	if rec.Code != http.StatusAccepted || body["scheduled"] != float64(3) {
		t.Errorf("expected 202 with 3 scheduled, got %d %v", rec.Code, body)
	}
}

func TestServer_SyncStoresEventID(t *testing.T) {
	syncer := &mockSyncer{syncID: "evt-1", syncOK: true}
	h, repo := newTestServer(syncer)

	rec, body := do(t, h, http.MethodPost, "/appointments/A1/sync", "")
	if rec.Code != http.StatusOK || body["calendar_synced"] != true || body["event_id"] != "evt-1" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
	if syncer.syncedWith != "" {
		t.Errorf("expected create path, got existing id %q", syncer.syncedWith)
	}

	appt, _ := repo.Get(context.Background(), "A1")
	if appt.CalendarEventID != "evt-1" {
		t.Errorf("expected event id to be stored, got %q", appt.CalendarEventID)
	}

	do(t, h, http.MethodPost, "/appointments/A1/sync", "")
	if syncer.syncedWith != "evt-1" {
		t.Errorf("expected update path with evt-1, got %q", syncer.syncedWith)
	}
}

func TestServer_SyncSavesPostedAppointment(t *testing.T) {
	syncer := &mockSyncer{syncID: "evt-7", syncOK: true}
	repo := memory.NewAppointmentRepo()
	h := NewServer(syncer, repo, 0).Routes()

	payload := `{"patient_name":"Asha","phone":"9876543210","treatment":"Dental Cleaning","date":"2024-02-01","time":"11:30 AM","duration":45}`
	rec, body := do(t, h, http.MethodPost, "/appointments/B2/sync", payload)
	if rec.Code != http.StatusOK || body["calendar_synced"] != true || body["event_id"] != "evt-7" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}

	appt, err := repo.Get(context.Background(), "B2")
	if err != nil {
		t.Fatalf("expected appointment to be saved: %v", err)
	}
	if appt.PatientName != "Asha" || appt.Duration != 45 || appt.CalendarEventID != "evt-7" {
		t.Errorf("unexpected stored appointment: %+v", appt)
	}

	payload = `{"patient_name":"Asha","treatment":"Dental Cleaning","date":"2024-02-01","time":"12:00 PM"}`
	do(t, h, http.MethodPost, "/appointments/B2/sync", payload)
	if syncer.syncedWith != "evt-7" {
		t.Errorf("expected rescheduled appointment to keep its event id, got %q", syncer.syncedWith)
	}
}

func TestServer_SyncRejectsBadBody(t *testing.T) {
	h, _ := newTestServer(&mockSyncer{syncOK: true})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"patient_name":`},
		{"mismatched id", `{"id":"other","patient_name":"Asha"}`},
	}
	for _, tt := range tests {
		rec, _ := do(t, h, http.MethodPost, "/appointments/A1/sync", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, rec.Code)
		}
	}
}

func TestServer_SyncFailureIsNonBlocking(t *testing.T) {
	h, _ := newTestServer(&mockSyncer{syncOK: false})

	rec, body := do(t, h, http.MethodPost, "/appointments/A1/sync", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body["calendar_synced"] != false || body["warning"] != pendingWarning {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestServer_SyncUnknownAppointment(t *testing.T) {
	h, _ := newTestServer(&mockSyncer{})

	rec, _ := do(t, h, http.MethodPost, "/appointments/nope/sync", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_DeleteEvent(t *testing.T) {
	syncer := &mockSyncer{deleteOK: false}
	h, repo := newTestServer(syncer)
	_ = repo.SetCalendarEventID(context.Background(), "A1", "evt-9")

	rec, body := do(t, h, http.MethodDelete, "/appointments/A1/event", "")
	if rec.Code != http.StatusOK || body["calendar_synced"] != false || body["warning"] != pendingWarning {
		t.Errorf("unexpected failure response: %d %v", rec.Code, body)
	}
	if appt, _ := repo.Get(context.Background(), "A1"); appt.CalendarEventID != "evt-9" {
		t.Error("event id must be kept when delete fails")
	}

	syncer.deleteOK = true
	rec, body = do(t, h, http.MethodDelete, "/appointments/A1/event", "")
	if rec.Code != http.StatusOK || body["calendar_synced"] != true {
		t.Errorf("unexpected success response: %d %v", rec.Code, body)
	}
	if syncer.deletedWith != "evt-9" {
		t.Errorf("expected evt-9 to be deleted, got %q", syncer.deletedWith)
	}
	if appt, _ := repo.Get(context.Background(), "A1"); appt.CalendarEventID != "" {
		t.Errorf("expected event id to be cleared, got %q", appt.CalendarEventID)
	}
}

func TestServer_TestConnection(t *testing.T) {
	syncer := &mockSyncer{testErr: domain.NewAPIError(403, "PERMISSION_DENIED", "forbidden", nil, nil)}
	h, _ := newTestServer(syncer)

	rec, body := do(t, h, http.MethodPost, "/admin/calendar/test", "")
	if rec.Code != http.StatusBadGateway || body["success"] != false {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
	if !strings.Contains(body["error"].(string), "Insufficient permissions") {
		t.Errorf("expected friendly message, got %v", body["error"])
	}

	syncer.testErr = nil
	rec, body = do(t, h, http.MethodPost, "/admin/calendar/test", "")
	if rec.Code != http.StatusOK || body["success"] != true || body["event_id"] != "evt-test" {
		t.Errorf("unexpected response: %d %v", rec.Code, body)
	}
}

func TestServer_ValidateCredentials(t *testing.T) {
	h, _ := newTestServer(&mockSyncer{})

	rec, body := do(t, h, http.MethodPost, "/admin/calendar/validate",
		`{"type":"service_account","client_email":"svc@p.iam.gserviceaccount.com","private_key":"k"}`)
	if rec.Code != http.StatusOK || body["valid"] != true {
		t.Errorf("expected valid credentials, got %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, "/admin/calendar/validate", `{"client_email":"svc"}`)
	if rec.Code != http.StatusBadRequest || body["valid"] != false {
		t.Errorf("expected invalid credentials, got %d %v", rec.Code, body)
	}
}

func TestServer_Metrics(t *testing.T) {
	h, _ := newTestServer(&mockSyncer{})

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
