package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vietddude/calsync/internal/core/domain"
)

// GoogleConfig configures a Google Calendar client.
type GoogleConfig struct {
	CalendarID      string
	CredentialsJSON []byte
	CredentialsFile string

	// Outbound throttle. Zero RequestsPerSecond disables it.
	RequestsPerSecond float64
	Burst             int

	// Extra client options, e.g. a custom endpoint.
	Options []option.ClientOption
}

// GoogleClient implements Client over the Google Calendar v3 API.
type GoogleClient struct {
	events     *gcal.EventsService
	calendarID string
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewGoogleClient authenticates with the configured service account and
// returns a client bound to one calendar.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.CalendarID == "" {
		return nil, errors.New("calendar id is required")
	}

	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	switch {
	case len(cfg.CredentialsJSON) > 0:
		if err := ValidateCredentials(cfg.CredentialsJSON); err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		if err := ValidateCredentials(raw); err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	}
	opts = append(opts, cfg.Options...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &GoogleClient{
		events:     svc.Events,
		calendarID: cfg.CalendarID,
		limiter:    limiter,
		log:        slog.Default().With("component", "google_calendar", "calendar_id", cfg.CalendarID),
	}, nil
}

func (c *GoogleClient) Insert(ctx context.Context, ev Event) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for rate limiter: %w", err)
	}
	res, err := c.events.Insert(c.calendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return Result{}, toAPIError(err)
	}
	c.log.Debug("Calendar event created", "event_id", res.Id, "summary", ev.Summary, "start", ev.Start.DateTime)
	return fromGoogleEvent(res), nil
}

func (c *GoogleClient) Get(ctx context.Context, eventID string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for rate limiter: %w", err)
	}
	res, err := c.events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Result{}, toAPIError(err)
	}
	return fromGoogleEvent(res), nil
}

func (c *GoogleClient) Update(ctx context.Context, eventID string, ev Event) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for rate limiter: %w", err)
	}
	res, err := c.events.Update(c.calendarID, eventID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return Result{}, toAPIError(err)
	}
	c.log.Debug("Calendar event updated", "event_id", res.Id, "summary", ev.Summary)
	return fromGoogleEvent(res), nil
}

func (c *GoogleClient) Delete(ctx context.Context, eventID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	if err := c.events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return toAPIError(err)
	}
	c.log.Debug("Calendar event deleted", "event_id", eventID)
	return nil
}

func toGoogleEvent(ev Event) *gcal.Event {
	attendees := make([]*gcal.EventAttendee, 0, len(ev.Attendees))
	for _, a := range ev.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: a.Email})
	}
	overrides := make([]*gcal.EventReminder, 0, len(ev.Reminders.Overrides))
	for _, r := range ev.Reminders.Overrides {
		overrides = append(overrides, &gcal.EventReminder{Method: r.Method, Minutes: int64(r.Minutes)})
	}

	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		ColorId:     ev.ColorID,
		Status:      ev.Status,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone},
		Attendees:   attendees,
		Reminders: &gcal.EventReminders{
			UseDefault:      ev.Reminders.UseDefault,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func fromGoogleEvent(ev *gcal.Event) Result {
	return Result{ID: ev.Id, Link: ev.HtmlLink, Status: ev.Status}
}

// toAPIError converts a Google API error into a *domain.APIError. The status
// name is only present in the raw JSON body.
func toAPIError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	var body struct {
		Error struct {
			Code    int                `json:"code"`
			Message string             `json:"message"`
			Status  string             `json:"status"`
			Errors  []domain.ErrorItem `json:"errors"`
		} `json:"error"`
	}
	if gerr.Body != "" {
		_ = json.Unmarshal([]byte(gerr.Body), &body)
	}

	items := body.Error.Errors
	if len(items) == 0 {
		for _, item := range gerr.Errors {
			items = append(items, domain.ErrorItem{Reason: item.Reason, Message: item.Message})
		}
	}

	msg := gerr.Message
	if msg == "" {
		msg = body.Error.Message
	}
	code := gerr.Code
	if code == 0 {
		code = body.Error.Code
	}
	return domain.NewAPIError(code, body.Error.Status, msg, items, err)
}

// ValidateCredentials checks that raw is a service account key carrying the
// fields the calendar client needs.
func ValidateCredentials(raw []byte) error {
	var creds struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return errors.New("invalid service account credentials: client_email and private_key are required")
	}
	if creds.Type != "" && creds.Type != "service_account" {
		return fmt.Errorf("invalid service account credentials: unexpected type %q", creds.Type)
	}
	return nil
}
