package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Operation is a mutation projected onto the calendar.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// RetryKey identifies a pending retry. At most one entry exists per key.
type RetryKey struct {
	Operation     Operation
	AppointmentID string
}

// NewRetryKey builds the key for an operation on an appointment.
func NewRetryKey(op Operation, appointmentID string) RetryKey {
	return RetryKey{Operation: op, AppointmentID: appointmentID}
}

// String renders the key as "operation:appointmentId" for external stores.
func (k RetryKey) String() string {
	return string(k.Operation) + ":" + k.AppointmentID
}

// ParseRetryKey reverses String. The operation never contains ':' so the first
// separator is authoritative even when the appointment id contains one.
func ParseRetryKey(s string) (RetryKey, error) {
	op, id, ok := strings.Cut(s, ":")
	if !ok {
		return RetryKey{}, fmt.Errorf("invalid retry key %q", s)
	}
	key := RetryKey{Operation: Operation(op), AppointmentID: id}
	if !key.Operation.Valid() {
		return RetryKey{}, fmt.Errorf("invalid retry key %q: unknown operation", s)
	}
	return key, nil
}

var (
	// ErrMaxRetriesExceeded marks an entry abandoned after its retry budget.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrInvalidAppointment is returned when an appointment cannot be turned into an event.
	ErrInvalidAppointment = errors.New("invalid appointment")

	// ErrNotConnected is returned when no calendar client is available.
	ErrNotConnected = errors.New("calendar not connected")

	// ErrMissingPayload is returned when a queued entry cannot be replayed.
	ErrMissingPayload = errors.New("retry entry has no payload")

	// ErrAppointmentNotFound is returned by appointment stores.
	ErrAppointmentNotFound = errors.New("appointment not found")
)
