package application

import (
	"context"
	"time"
)

// EventQuery narrows event listings. Zero values disable the matching condition.
type EventQuery struct {
	OwnerID     string
	StartsFrom  *time.Time
	StartsUntil *time.Time
	EndsFrom    *time.Time
	EndsUntil   *time.Time
	Text        string
	Descending  bool
	Limit       int
}

// ActivityQuery narrows activity listings.
type ActivityQuery struct {
	UserID string
	Since  *time.Time
	Limit  int
}

// EventRepository captures the event persistence operations needed by the services.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	FindEventByProviderID(ctx context.Context, providerEventID string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
	CountEvents(ctx context.Context, query EventQuery) (int, error)
	CategoryCounts(ctx context.Context, ownerID string) ([]CategoryCount, error)
}

// AttendeeRepository captures attendee persistence. Mutations commit the
// attendee change and its activity record as one unit.
type AttendeeRepository interface {
	ListAttendees(ctx context.Context, eventID string) ([]Attendee, error)
	FindAttendees(ctx context.Context, eventID, email string) ([]Attendee, error)
	AddAttendee(ctx context.Context, attendee Attendee, activity Activity) (Attendee, error)
	RemoveAttendees(ctx context.Context, eventID, email string, activity Activity) (int, error)
	UpdateAttendeeStatus(ctx context.Context, eventID, email string, status AttendeeStatus, updatedAt time.Time, activity Activity) error
}

// ActivityRepository captures the append-only activity log.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, query ActivityQuery) ([]Activity, error)
	CountActivities(ctx context.Context, query ActivityQuery) (int, error)
}

// CalendarProvider is an external calendar bound to one user's credential.
type CalendarProvider interface {
	CreateEvent(ctx context.Context, event ProviderEvent) (string, error)
	UpdateEvent(ctx context.Context, providerEventID string, patch ProviderEventPatch) error
	DeleteEvent(ctx context.Context, providerEventID string) error
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]RemoteEvent, error)
}

// ProviderFactory builds a CalendarProvider for a per-user access credential.
type ProviderFactory interface {
	ForCredential(ctx context.Context, credential string) (CalendarProvider, error)
}

// ProviderFactoryFunc adapts a function to ProviderFactory.
type ProviderFactoryFunc func(ctx context.Context, credential string) (CalendarProvider, error)

// ForCredential implements ProviderFactory.
func (f ProviderFactoryFunc) ForCredential(ctx context.Context, credential string) (CalendarProvider, error) {
	return f(ctx, credential)
}

// InvitationSender hands invitations to the mail collaborator.
type InvitationSender interface {
	SendInvitation(ctx context.Context, invitation Invitation) error
}

// InvitationTokens signs and verifies invitation respond links.
type InvitationTokens interface {
	SignInvitation(eventID, email string) string
	VerifyInvitation(eventID, email, token string) bool
}

// SyncObserver is notified after every inbound sync attempt.
type SyncObserver interface {
	ObserveSync(result SyncResult, err error)
}
