package application

import "time"

// Principal represents the authenticated actor invoking a service method.
type Principal struct {
	UserID string
	Email  string
	Name   string
	// ProviderToken is the actor's access credential for the external calendar
	// provider. Empty when the actor has not connected a provider.
	ProviderToken string
}

// HasProviderCredential reports whether outbound mirroring can be attempted.
func (p Principal) HasProviderCredential() bool {
	return p.ProviderToken != ""
}

// Event is a calendar entry owned by a single user.
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

// EventInput captures caller provided fields for a new event.
type EventInput struct {
	Title       string
	Description *string
	Location    *string
	Category    *string
	Color       *string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// EventPatch carries a partial update. Nil fields are left untouched; an empty
// string clears an optional field.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Category    *string
	Color       *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Patch     EventPatch
}

// ListEventsParams describes the window of events to list. Nil bounds fall
// back to [now, now+30 days].
type ListEventsParams struct {
	Principal Principal
	Start     *time.Time
	End       *time.Time
}

// SearchEventsParams carries a free text event search.
type SearchEventsParams struct {
	Principal Principal
	Query     string
}

// ProviderSyncStatus reports the outcome of mirroring a local mutation.
type ProviderSyncStatus string

const (
	ProviderSyncSynced  ProviderSyncStatus = "synced"
	ProviderSyncSkipped ProviderSyncStatus = "skipped"
	ProviderSyncFailed  ProviderSyncStatus = "failed"
)

// ProviderSync describes what happened to the provider mirror of a mutation.
type ProviderSync struct {
	Status ProviderSyncStatus
	Reason string
}

// EventResult is returned by event mutations.
type EventResult struct {
	Event        Event
	ProviderSync ProviderSync
}

// AttendeeRole is the role of an attendee within an event.
type AttendeeRole string

const (
	AttendeeRoleOwner    AttendeeRole = "owner"
	AttendeeRoleAttendee AttendeeRole = "attendee"
	AttendeeRoleGuest    AttendeeRole = "guest"
)

// Valid reports whether the role is one of the known values.
func (r AttendeeRole) Valid() bool {
	switch r {
	case AttendeeRoleOwner, AttendeeRoleAttendee, AttendeeRoleGuest:
		return true
	}
	return false
}

// AttendeeStatus is an invitee's response.
type AttendeeStatus string

const (
	AttendeeStatusPending   AttendeeStatus = "pending"
	AttendeeStatusAccepted  AttendeeStatus = "accepted"
	AttendeeStatusDeclined  AttendeeStatus = "declined"
	AttendeeStatusTentative AttendeeStatus = "tentative"
)

// Valid reports whether the status is one of the known values.
func (s AttendeeStatus) Valid() bool {
	switch s {
	case AttendeeStatusPending, AttendeeStatusAccepted, AttendeeStatusDeclined, AttendeeStatusTentative:
		return true
	}
	return false
}

// Attendee is a participant attached to an event, keyed by email.
type Attendee struct {
	ID        string
	EventID   string
	Email     string
	Role      AttendeeRole
	Status    AttendeeStatus
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
}

// AddAttendeeParams wraps the data required to invite an attendee.
type AddAttendeeParams struct {
	Principal Principal
	EventID   string
	Email     string
	Role      AttendeeRole
	Status    AttendeeStatus
}

// RemoveAttendeeParams identifies the attendee to remove.
type RemoveAttendeeParams struct {
	Principal Principal
	EventID   string
	Email     string
}

// RespondInvitationParams carries an invitee's answer from the respond link.
type RespondInvitationParams struct {
	EventID string
	Email   string
	Token   string
	Status  AttendeeStatus
}

// ActivityType enumerates the actions written to the activity log.
type ActivityType string

const (
	ActivityViewEvent          ActivityType = "VIEW_EVENT"
	ActivityCreateEvent        ActivityType = "CREATE_EVENT"
	ActivityUpdateEvent        ActivityType = "UPDATE_EVENT"
	ActivityDeleteEvent        ActivityType = "DELETE_EVENT"
	ActivitySearchEvents       ActivityType = "SEARCH_EVENTS"
	ActivityCalendarSync       ActivityType = "CALENDAR_SYNC"
	ActivityAddAttendee        ActivityType = "ADD_ATTENDEE"
	ActivityRemoveAttendee     ActivityType = "REMOVE_ATTENDEE"
	ActivityRespondInvitation  ActivityType = "RESPOND_INVITATION"
	ActivityViewUpcomingEvents ActivityType = "VIEW_UPCOMING_EVENTS"
	ActivityViewCategories     ActivityType = "VIEW_CATEGORIES"
	ActivityViewStats          ActivityType = "VIEW_STATS"
)

// Activity is an immutable audit record of a user action.
type Activity struct {
	ID        string
	UserID    string
	Type      ActivityType
	Details   string
	CreatedAt time.Time
	CreatedBy string
}

// ListActivitiesParams describes an activity feed request. A zero Limit uses the default.
type ListActivitiesParams struct {
	Principal Principal
	Limit     int
}

// ProviderEvent is the outbound shape sent to a calendar provider on create.
type ProviderEvent struct {
	Title       string
	Description string
	Location    string
	Color       string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// ProviderEventPatch holds only the fields that changed in a local update.
type ProviderEventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Color       *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
}

// IsEmpty reports whether the patch carries no changes.
func (p ProviderEventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil && p.Color == nil &&
		p.Start == nil && p.End == nil && p.AllDay == nil
}

// RemoteEvent is an event read from a calendar provider during inbound sync.
type RemoteEvent struct {
	ProviderID  string
	Title       string
	Description string
	Location    string
	Start       *time.Time
	End         *time.Time
	AllDay      bool
}

// SyncResult summarises an inbound sync run.
type SyncResult struct {
	Fetched     int
	Processed   int
	Created     int
	Updated     int
	Skipped     int
	Failed      int
	WindowStart time.Time
	WindowEnd   time.Time
}

// CategoryCount is the number of events tagged with a category.
type CategoryCount struct {
	Category string
	Count    int
}

// Stats summarises an owner's calendar.
type Stats struct {
	TotalEvents          int
	UpcomingEvents       int
	CompletedEvents      int
	RecentActivities     int
	CategoryDistribution []CategoryCount
	GeneratedAt          time.Time
}

// Invitation is handed to the mail collaborator after an attendee is added.
type Invitation struct {
	EventID        string
	EventTitle     string
	OrganizerName  string
	OrganizerEmail string
	RecipientEmail string
	Start          time.Time
	End            time.Time
	AllDay         bool
	Location       string
	Description    string
	RespondToken   string
}
