package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/calsync/internal/core/config"
	"github.com/vietddude/calsync/internal/core/domain"
	"github.com/vietddude/calsync/internal/core/worker"
	"github.com/vietddude/calsync/internal/eventsync/health"
	"github.com/vietddude/calsync/internal/eventsync/orchestrator"
	"github.com/vietddude/calsync/internal/eventsync/recovery"
	"github.com/vietddude/calsync/internal/infra/calendar"
	redisclient "github.com/vietddude/calsync/internal/infra/redis"
	"github.com/vietddude/calsync/internal/infra/storage"
	"github.com/vietddude/calsync/internal/infra/storage/memory"
	"github.com/vietddude/calsync/internal/infra/storage/postgres"
)

// App wires the sync engine, its stores and the HTTP server.
type App struct {
	cfg          *config.AppConfig
	service      *orchestrator.Service
	retrier      *worker.Retrier
	server       *health.Server
	appointments storage.AppointmentRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{
		cfg: cfg,
		log: slog.Default().With("component", "app"),
	}

	// 1. Appointment store
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.appointments = postgres.NewAppointmentRepo(db)
		a.log.Info("Using PostgreSQL appointment store")
	} else {
		a.appointments = memory.NewAppointmentRepo()
		a.log.Info("Using in-memory appointment store")
	}

	// 2. Retry queue
	var queue recovery.QueueStore
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			a.closeStores()
			return nil, err
		}
		a.redisClient = client
		queue = redisclient.NewRetryQueue(client, cfg.Calendar.CalendarID)
		a.log.Info("Using Redis retry queue")
	} else {
		queue = recovery.NewMemoryQueue()
		a.log.Info("Using in-memory retry queue; pending retries are lost on restart")
	}

	handler := recovery.NewHandler(queue, recovery.WithErrorLogCapacity(cfg.ErrorLog.Capacity))

	// 3. Orchestrator
	retryCfg := RetryStrategy(cfg.Retry)
	if err := retryCfg.Validate(); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	a.service = orchestrator.NewService(
		CalendarConnector(cfg.Calendar),
		handler,
		orchestrator.Config{
			CalendarID: cfg.Calendar.CalendarID,
			Location:   cfg.Calendar.Location,
			Retry:      retryCfg,
		},
		orchestrator.WithEventIDSink(a.appointments),
	)

	// 4. Workers and server
	a.retrier = worker.NewRetrier(a.service, cfg.Retry.Interval)
	a.server = health.NewServer(a.service, a.appointments, cfg.Server.Port)

	return a, nil
}

// Service returns the sync orchestrator.
func (a *App) Service() *orchestrator.Service {
	return a.service
}

// Appointments returns the appointment store.
func (a *App) Appointments() storage.AppointmentRepository {
	return a.appointments
}

// Start connects the calendar and launches the server and retry worker.
// It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	a.group = g

	if a.cfg.Calendar.Enabled {
		if a.service.Initialize(ctx) {
			a.log.Info("Calendar sync enabled", "calendar_id", a.cfg.Calendar.CalendarID)
		} else {
			a.log.Warn("Calendar not reachable yet, will retry on next operation")
		}
	} else {
		a.log.Warn("Calendar integration disabled; sync operations will be recorded as failures")
	}

	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.retrier.Start(ctx)
		return nil
	})

	return nil
}

// Wait blocks until a component fails or the app is stopped.
func (a *App) Wait() error {
	if a.group == nil {
		return nil
	}
	return a.group.Wait()
}

// Stop shuts down the server, aborts pending retries and closes stores.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping calsync...")

	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop http server: %w", err))
	}
	if err := a.service.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop retries: %w", err))
	}
	if err := a.Wait(); err != nil {
		errs = append(errs, err)
	}
	a.closeStores()

	return errors.Join(errs...)
}

func (a *App) closeStores() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}

// RetryStrategy converts the configured retry settings.
func RetryStrategy(cfg config.RetryConfig) recovery.RetryConfig {
	out := recovery.DefaultRetryConfig
	if cfg.MaxRetries != nil {
		out.MaxRetries = *cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		out.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		out.MaxDelay = cfg.MaxDelay
	}
	if cfg.ExponentialBase > 0 {
		out.ExponentialBase = cfg.ExponentialBase
	}
	return out
}

// CalendarConnector returns a connector building a Google Calendar client
// from cfg. A disabled calendar never connects.
func CalendarConnector(cfg config.CalendarConfig) orchestrator.Connector {
	return func(ctx context.Context) (calendar.Client, error) {
		if !cfg.Enabled {
			return nil, fmt.Errorf("%w: calendar integration is disabled", domain.ErrNotConnected)
		}
		return calendar.NewGoogleClient(ctx, calendar.GoogleConfig{
			CalendarID:        cfg.CalendarID,
			CredentialsJSON:   []byte(cfg.CredentialsJSON),
			CredentialsFile:   cfg.CredentialsFile,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		})
	}
}
