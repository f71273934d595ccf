package storage

import (
	"context"

	"github.com/vietddude/calsync/internal/core/domain"
)

// AppointmentRepository handles appointment storage operations
type AppointmentRepository interface {
	// Get retrieves an appointment by id. Missing appointments return
	// domain.ErrAppointmentNotFound.
	Get(ctx context.Context, id string) (*domain.Appointment, error)

	// Save inserts or replaces an appointment
	Save(ctx context.Context, appt *domain.Appointment) error

	// List returns all appointments ordered by date and time
	List(ctx context.Context) ([]*domain.Appointment, error)

	// SetCalendarEventID records the calendar event of an appointment.
	// An empty eventID clears it.
	SetCalendarEventID(ctx context.Context, appointmentID, eventID string) error
}
