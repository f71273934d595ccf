package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/vietddude/calsync/internal/core/domain"
)

// Requires a disposable database; set CALSYNC_TEST_DATABASE_URL to run.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("CALSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping postgres test. Set CALSYNC_TEST_DATABASE_URL to run.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE appointments`); err != nil {
		t.Fatalf("Failed to truncate: %v", err)
	}
	return db
}

func TestAppointmentRepo_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAppointmentRepo(db)
	ctx := context.Background()

	appt := &domain.Appointment{
		ID:          "A1",
		PatientName: "Ravi Kumar",
		Phone:       "9876543210",
		Treatment:   "Root Canal",
		Date:        "2024-01-15",
		Time:        "10:00 AM",
		Duration:    90,
	}
	if err := repo.Save(ctx, appt); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.SetCalendarEventID(ctx, "A1", "evt-1"); err != nil {
		t.Fatalf("SetCalendarEventID failed: %v", err)
	}

	got, err := repo.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CalendarEventID != "evt-1" || got.Duration != 90 || got.Treatment != "Root Canal" {
		t.Errorf("unexpected appointment: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
	if err := repo.SetCalendarEventID(ctx, "missing", "x"); !errors.Is(err, domain.ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("expected 1 appointment, got %d (%v)", len(list), err)
	}
}
