package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries. Zero values disable the matching condition.
type EventFilter struct {
	OwnerID     string
	StartsFrom  *time.Time
	StartsUntil *time.Time
	EndsFrom    *time.Time
	EndsUntil   *time.Time
	// Text matches title, description and location case-insensitively.
	Text       string
	Descending bool
	Limit      int
}

// ActivityFilter narrows activity queries.
type ActivityFilter struct {
	UserID string
	Since  *time.Time
	Limit  int
}

// EventRepository stores events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	GetEventByProviderID(ctx context.Context, providerEventID string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	CountEvents(ctx context.Context, filter EventFilter) (int, error)
	CategoryCounts(ctx context.Context, ownerID string) ([]CategoryCount, error)
	DeleteEvent(ctx context.Context, id string) error
}

// AttendeeRepository stores event attendees. Every mutation is committed
// together with the activity record describing it.
type AttendeeRepository interface {
	ListAttendees(ctx context.Context, eventID string) ([]Attendee, error)
	FindAttendees(ctx context.Context, eventID, email string) ([]Attendee, error)
	CreateAttendeeWithActivity(ctx context.Context, attendee Attendee, activity Activity) error
	DeleteAttendeesWithActivity(ctx context.Context, eventID, email string, activity Activity) (int, error)
	UpdateAttendeeStatusWithActivity(ctx context.Context, eventID, email, status string, updatedAt time.Time, activity Activity) error
}

// ActivityRepository stores the append-only activity log.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error)
	CountActivities(ctx context.Context, filter ActivityFilter) (int, error)
}
