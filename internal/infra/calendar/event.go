package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/vietddude/calsync/internal/core/domain"
)

const (
	// TimeZone is the clinic's zone. All event times are wall-clock times in it.
	TimeZone = "Asia/Kolkata"

	// DefaultLocation is used when no clinic name is configured.
	DefaultLocation = "Vasavi Dental Care"

	// DefaultColorID is used for treatments missing from the color table.
	DefaultColorID = "7"

	// dateTimeLayout renders local wall-clock time without an offset.
	dateTimeLayout = "2006-01-02T15:04:05"
)

var treatmentColors = map[string]string{
	"Dental Cleaning":          "1",  // Lavender
	"Root Canal":               "11", // Tomato
	"Tooth Extraction":         "4",  // Flamingo
	"Dental Filling":           "2",  // Sage
	"Orthodontic Consultation": "3",  // Grape
	"Teeth Whitening":          "5",  // Banana
	"Dental Implant":           "6",  // Tangerine
	"General Consultation":     "7",  // Peacock
	"Emergency":                "11", // Tomato
	"Follow-up":                "9",  // Blueberry
}

// Event is a calendar entry for one appointment.
type Event struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	ColorID     string     `json:"colorId"`
	Status      string     `json:"status"`
	Start       EventTime  `json:"start"`
	End         EventTime  `json:"end"`
	Attendees   []Attendee `json:"attendees"`
	Reminders   Reminders  `json:"reminders"`
}

type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type Attendee struct {
	Email string `json:"email"`
}

type Reminders struct {
	UseDefault bool       `json:"useDefault"`
	Overrides  []Reminder `json:"overrides"`
}

type Reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// Result is what the provider reports about a written event.
type Result struct {
	ID     string `json:"id"`
	Link   string `json:"link,omitempty"`
	Status string `json:"status,omitempty"`
}

// TreatmentColor returns the calendar color id for a treatment name.
func TreatmentColor(treatment string) string {
	if id, ok := treatmentColors[treatment]; ok {
		return id
	}
	return DefaultColorID
}

var clinicZone = mustLoadZone(TimeZone)

func mustLoadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load time zone %s: %v", name, err))
	}
	return loc
}

// CombineDateTime joins a YYYY-MM-DD date with a "10:00 AM" or "14:00" time
// into a clinic-local instant.
func CombineDateTime(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.ToUpper(strings.Join(strings.Fields(clock), " "))
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("%w: missing date or time", domain.ErrInvalidAppointment)
	}

	layout := "2006-01-02 15:04"
	if strings.HasSuffix(clock, "AM") || strings.HasSuffix(clock, "PM") {
		layout = "2006-01-02 3:04 PM"
		if !strings.Contains(clock, " ") {
			clock = clock[:len(clock)-2] + " " + clock[len(clock)-2:]
		}
	}

	t, err := time.ParseInLocation(layout, date+" "+clock, clinicZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse %q %q: %v", domain.ErrInvalidAppointment, date, clock, err)
	}
	return t, nil
}

// BuildEvent turns an appointment into the event written to the calendar.
func BuildEvent(appt domain.Appointment, location string) (Event, error) {
	if appt.PatientName == "" || appt.Treatment == "" {
		return Event{}, fmt.Errorf("%w: patient name and treatment are required", domain.ErrInvalidAppointment)
	}

	start, err := CombineDateTime(appt.Date, appt.Time)
	if err != nil {
		return Event{}, err
	}
	end := start.Add(time.Duration(appt.DurationMinutes()) * time.Minute)

	if location == "" {
		location = DefaultLocation
	}

	attendees := []Attendee{}
	if appt.Email != "" {
		attendees = append(attendees, Attendee{Email: appt.Email})
	}

	return Event{
		Summary: fmt.Sprintf("%s - %s", appt.Treatment, appt.PatientName),
		Description: fmt.Sprintf("Patient: %s\nTreatment: %s\nPhone: %s",
			appt.PatientName, appt.Treatment, appt.Phone),
		Location:  location,
		ColorID:   TreatmentColor(appt.Treatment),
		Status:    "confirmed",
		Start:     EventTime{DateTime: start.Format(dateTimeLayout), TimeZone: TimeZone},
		End:       EventTime{DateTime: end.Format(dateTimeLayout), TimeZone: TimeZone},
		Attendees: attendees,
		Reminders: Reminders{
			UseDefault: false,
			Overrides: []Reminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
		},
	}, nil
}

// TestEvent builds a short placeholder event starting at now.
func TestEvent(now time.Time, location string) Event {
	if location == "" {
		location = DefaultLocation
	}
	start := now.In(clinicZone)
	end := start.Add(time.Duration(domain.DefaultDurationMinutes) * time.Minute)
	return Event{
		Summary:     "Calendar connection test",
		Description: "Created by calsync to verify calendar access. Safe to delete.",
		Location:    location,
		ColorID:     DefaultColorID,
		Status:      "confirmed",
		Start:       EventTime{DateTime: start.Format(dateTimeLayout), TimeZone: TimeZone},
		End:         EventTime{DateTime: end.Format(dateTimeLayout), TimeZone: TimeZone},
		Attendees:   []Attendee{},
		Reminders:   Reminders{UseDefault: false, Overrides: []Reminder{}},
	}
}
