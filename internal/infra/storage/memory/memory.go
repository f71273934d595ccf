package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/infra/storage"
)

var _ storage.AppointmentRepository = (*AppointmentRepo)(nil)

// AppointmentRepo is a process-local appointment store.
type AppointmentRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Appointment
}

func NewAppointmentRepo() *AppointmentRepo {
	return &AppointmentRepo{items: make(map[string]domain.Appointment)}
}

func (r *AppointmentRepo) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.items[id]
	if !ok {
		return nil, domain.ErrAppointmentNotFound
	}
	return &appt, nil
}

func (r *AppointmentRepo) Save(ctx context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[appt.ID] = *appt
	return nil
}

func (r *AppointmentRepo) List(ctx context.Context) ([]*domain.Appointment, error) {
	r.mu.RLock()
	out := make([]*domain.Appointment, 0, len(r.items))
	for _, appt := range r.items {
		out = append(out, &appt)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AppointmentRepo) SetCalendarEventID(ctx context.Context, appointmentID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[appointmentID]
	if !ok {
		return domain.ErrAppointmentNotFound
	}
	appt.CalendarEventID = eventID
	r.items[appointmentID] = appt
	return nil
}
