package domain

// DefaultDurationMinutes is used when an appointment carries no duration.
const DefaultDurationMinutes = 30

// Appointment is the calendar-relevant projection of a booked appointment.
type Appointment struct {
	ID              string `json:"id"                          db:"id"`
	PatientName     string `json:"patient_name"                db:"patient_name"`
	Phone           string `json:"phone"                       db:"phone"`
	Email           string `json:"email,omitempty"             db:"email"`
	Treatment       string `json:"treatment"                   db:"treatment"`
	Date            string `json:"date"                        db:"date"` // YYYY-MM-DD
	Time            string `json:"time"                        db:"time"` // "10:00 AM" or "14:00"
	Duration        int    `json:"duration"                    db:"duration"`
	CalendarEventID string `json:"calendar_event_id,omitempty" db:"calendar_event_id"`
}

// DurationMinutes returns the appointment length, falling back to the default.
func (a Appointment) DurationMinutes() int {
	if a.Duration <= 0 {
		return DefaultDurationMinutes
	}
	return a.Duration
}
