package calendar

import "context"

// Client is the calendar operations the sync engine depends on.
type Client interface {
	// Insert creates an event and returns its provider id
	Insert(ctx context.Context, ev Event) (Result, error)

	// Get fetches an existing event
	Get(ctx context.Context, eventID string) (Result, error)

	// Update replaces an existing event
	Update(ctx context.Context, eventID string, ev Event) (Result, error)

	// Delete removes an event
	Delete(ctx context.Context, eventID string) error
}
