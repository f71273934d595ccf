package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/infra/storage"
)

var _ storage.AppointmentRepository = (*AppointmentRepo)(nil)

const appointmentColumns = `id, patient_name, phone, email, treatment, date, time, duration, calendar_event_id`

// AppointmentRepo implements storage.AppointmentRepository using PostgreSQL.
type AppointmentRepo struct {
	db *DB
}

// NewAppointmentRepo creates a new PostgreSQL appointment repository.
func NewAppointmentRepo(db *DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Get retrieves an appointment by id.
func (r *AppointmentRepo) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.GetContext(ctx, &appt,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// Save inserts or replaces an appointment.
func (r *AppointmentRepo) Save(ctx context.Context, appt *domain.Appointment) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (:id, :patient_name, :phone, :email, :treatment, :date, :time, :duration, :calendar_event_id)
		ON CONFLICT (id) DO UPDATE SET
			patient_name      = EXCLUDED.patient_name,
			phone             = EXCLUDED.phone,
			email             = EXCLUDED.email,
			treatment         = EXCLUDED.treatment,
			date              = EXCLUDED.date,
			time              = EXCLUDED.time,
			duration          = EXCLUDED.duration,
			calendar_event_id = EXCLUDED.calendar_event_id,
			updated_at        = NOW()`, appt)
	if err != nil {
		return fmt.Errorf("failed to save appointment: %w", err)
	}
	return nil
}

// List returns all appointments ordered by date and time.
func (r *AppointmentRepo) List(ctx context.Context) ([]*domain.Appointment, error) {
	var appts []*domain.Appointment
	err := r.db.SelectContext(ctx, &appts,
		`SELECT `+appointmentColumns+` FROM appointments ORDER BY date, time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// SetCalendarEventID records the calendar event of an appointment.
func (r *AppointmentRepo) SetCalendarEventID(ctx context.Context, appointmentID, eventID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET calendar_event_id = $2, updated_at = NOW() WHERE id = $1`,
		appointmentID, eventID)
	if err != nil {
		return fmt.Errorf("failed to set calendar event id: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}
