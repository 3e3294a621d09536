package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/config"
	httptransport "github.com/example/personal-calendar/internal/http"
	"github.com/example/personal-calendar/internal/mail"
	"github.com/example/personal-calendar/internal/metrics"
	"github.com/example/personal-calendar/internal/persistence/memory"
	"github.com/example/personal-calendar/internal/persistence/sqlite"
	"github.com/example/personal-calendar/internal/provider/caldav"
	"github.com/example/personal-calendar/internal/provider/google"
	"github.com/example/personal-calendar/internal/security"
)

// runtime holds the wired services for one process.
type runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      calendarStore
	metrics    *metrics.Metrics
	keyring    *security.Keyring
	dispatcher *mail.Dispatcher

	events     *application.EventService
	attendees  *application.AttendeeService
	sync       *application.SyncService
	activities *application.ActivityService
}

func openStore(cfg config.Config, logger *slog.Logger) (calendarStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

func newProviderFactory(cfg config.ProviderConfig, logger *slog.Logger) (application.ProviderFactory, error) {
	switch cfg.Kind {
	case config.ProviderGoogle:
		factory, err := google.NewFactory(google.Config{
			CalendarID: cfg.GoogleCalendarID,
			TimeZone:   cfg.TimeZone,
			Timeout:    cfg.Timeout,
			MaxPages:   cfg.MaxPages,
		}, logger)
		if err != nil {
			return nil, err
		}
		return factory, nil
	case config.ProviderCalDAV:
		factory, err := caldav.NewFactory(caldav.Config{
			Endpoint:     cfg.CalDAVEndpoint,
			CalendarPath: cfg.CalDAVCalendarPath,
			TimeZone:     cfg.TimeZone,
			Timeout:      cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return factory, nil
	case config.ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Kind)
	}
}

func newMailSender(cfg config.MailConfig, logger *slog.Logger) (mail.Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP host not configured; invitations will be logged only")
		return mail.NewLogSender(logger), nil
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
		FromName: cfg.FromName,
	})
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// newRuntime wires the store, collaborators and services. The store is opened
// but not migrated.
func newRuntime(cfg config.Config, logger *slog.Logger) (*runtime, error) {
	keyring, err := security.NewKeyring([]byte(cfg.IdentitySecret), cfg.InvitationTTL)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store, metrics: metrics.New(), keyring: keyring}
	if err := rt.wire(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) wire() error {
	cfg, logger := rt.cfg, rt.logger

	var providers application.ProviderFactory
	factory, err := newProviderFactory(cfg.Provider, logger)
	if err != nil {
		return err
	}
	if factory != nil {
		providers = rt.metrics.InstrumentProviders(factory)
	}

	renderer, err := mail.NewRenderer(cfg.Mail.PublicBaseURL, cfg.Provider.TimeZone)
	if err != nil {
		return err
	}
	sender, err := newMailSender(cfg.Mail, logger)
	if err != nil {
		return err
	}
	rt.dispatcher = mail.NewDispatcher(renderer, sender, mail.DispatcherConfig{
		QueueSize: cfg.Mail.QueueSize,
		Workers:   cfg.Mail.Workers,
	}, logger)
	rt.dispatcher.SetObserver(rt.metrics)

	events := newEventRepositoryAdapter(rt.store)
	attendees := newAttendeeRepositoryAdapter(rt.store)
	activities := newActivityRepositoryAdapter(rt.store)
	idGenerator := uuid.NewString
	now := func() time.Time { return time.Now().UTC() }

	rt.events = application.NewEventServiceWithLogger(events, attendees, activities, providers, idGenerator, now, logger)
	rt.attendees = application.NewAttendeeServiceWithLogger(events, attendees, rt.dispatcher, rt.keyring, idGenerator, now, logger)
	rt.sync = application.NewSyncServiceWithLogger(events, activities, providers, idGenerator, now, logger)
	rt.sync.SetObserver(rt.metrics)
	rt.activities = application.NewActivityServiceWithLogger(activities, logger)
	return nil
}

func (rt *runtime) handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Events:       httptransport.NewEventHandler(rt.events, rt.logger),
		Attendees:    httptransport.NewAttendeeHandler(rt.attendees, rt.logger),
		Sync:         httptransport.NewSyncHandler(rt.sync, rt.activities, rt.logger),
		Health:       httptransport.NewHealthHandler(rt.store, rt.logger),
		Metrics:      rt.metrics.Handler(),
		Authenticate: httptransport.RequireIdentity(rt.keyring, rt.logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.Instrument(rt.metrics),
			httptransport.RequestLogger(rt.logger),
		},
	})
}

// Close drains pending invitations and closes the store.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.dispatcher != nil {
		if err := rt.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain mail queue: %w", err))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
