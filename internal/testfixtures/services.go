package testfixtures

import (
	"io"
	"log/slog"

	"github.com/example/personal-calendar/internal/application"
)

// Services builds application services that share one clock and one
// identifier sequence, so tests can predict timestamps and IDs.
type Services struct {
	Clock  *Clock
	IDs    *Sequence
	Logger *slog.Logger
}

// NewServices returns a builder at ReferenceTime with a discarding logger.
func NewServices() *Services {
	return &Services{
		Clock:  NewClock(ReferenceTime()),
		IDs:    NewSequence("id"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Repositories groups the application-level ports a service may need.
type Repositories struct {
	Events     application.EventRepository
	Attendees  application.AttendeeRepository
	Activities application.ActivityRepository
}

// Events builds an EventService.
func (s *Services) Events(repos Repositories, providers application.ProviderFactory) *application.EventService {
	return application.NewEventServiceWithLogger(repos.Events, repos.Attendees, repos.Activities, providers, s.IDs.Next, s.Clock.Now, s.Logger)
}

// Attendees builds an AttendeeService.
func (s *Services) Attendees(repos Repositories, invitations application.InvitationSender, tokens application.InvitationTokens) *application.AttendeeService {
	return application.NewAttendeeServiceWithLogger(repos.Events, repos.Attendees, invitations, tokens, s.IDs.Next, s.Clock.Now, s.Logger)
}

// Sync builds a SyncService.
func (s *Services) Sync(repos Repositories, providers application.ProviderFactory) *application.SyncService {
	return application.NewSyncServiceWithLogger(repos.Events, repos.Activities, providers, s.IDs.Next, s.Clock.Now, s.Logger)
}
