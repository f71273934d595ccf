package domain

import (
	"fmt"
	"time"
)

// OperationError records one failed calendar operation.
type OperationError struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Operation     Operation `json:"operation"`
	Err           error     `json:"-"`
	ErrorMsg      string    `json:"error_msg"`
	Timestamp     time.Time `json:"timestamp"`
	RetryCount    int       `json:"retry_count"`

	// Replay payload.
	Appointment *Appointment `json:"appointment,omitempty"`
	EventID     string       `json:"event_id,omitempty"`
}

// Key returns the retry queue key of this failure.
func (e OperationError) Key() RetryKey {
	return NewRetryKey(e.Operation, e.AppointmentID)
}

// WithError returns a copy carrying err as its cause.
func (e OperationError) WithError(err error) OperationError {
	e.Err = err
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

func (e OperationError) Error() string {
	msg := e.ErrorMsg
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.AppointmentID == "" {
		return fmt.Sprintf("calendar %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("calendar %s %s: %s", e.Operation, e.AppointmentID, msg)
}

func (e OperationError) Unwrap() error {
	return e.Err
}

// ErrorItem is a single entry of a calendar API error body.
type ErrorItem struct {
	Domain  string `json:"domain,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is the structured error body returned by the calendar provider.
type APIError struct {
	Code    int         `json:"code"`
	Status  string      `json:"status,omitempty"`
	Message string      `json:"message"`
	Errors  []ErrorItem `json:"errors,omitempty"`

	cause error
}

// NewAPIError wraps cause with the decoded body fields.
func NewAPIError(code int, status, message string, items []ErrorItem, cause error) *APIError {
	return &APIError{Code: code, Status: status, Message: message, Errors: items, cause: cause}
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("calendar api error %d (%s): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("calendar api error %d: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Reasons returns the reason of every error item.
func (e *APIError) Reasons() []string {
	reasons := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		if item.Reason != "" {
			reasons = append(reasons, item.Reason)
		}
	}
	return reasons
}
