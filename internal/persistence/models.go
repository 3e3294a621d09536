package persistence

import "time"

// Event represents a calendar entry owned by a single user.
type Event struct {
	ID              string
	OwnerID         string
	Title           string
	Description     *string
	Location        *string
	Category        *string
	Color           *string
	Start           time.Time
	End             time.Time
	AllDay          bool
	ProviderEventID *string
	CreatedAt       time.Time
	CreatedBy       string
	UpdatedAt       time.Time
	UpdatedBy       string
}

// Attendee represents an invitee attached to an event.
type Attendee struct {
	ID        string
	EventID   string
	Email     string
	Role      string
	Status    string
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
}

// Activity is an immutable audit record of a user action.
type Activity struct {
	ID        string
	UserID    string
	Type      string
	Details   string
	CreatedAt time.Time
	CreatedBy string
}

// CategoryCount is the number of events tagged with a category.
type CategoryCount struct {
	Category string
	Count    int
}
