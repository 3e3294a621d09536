package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/persistence"
)

var (
	eventCounter    uint64
	attendeeCounter uint64
	activityCounter uint64
)

var referenceTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic event record that can be
// materialised for application or persistence tests.
type EventFixture struct {
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
	UpdatedAt       time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		ID:        fmt.Sprintf("event-%03d", idx),
		OwnerID:   "user-001",
		Title:     fmt.Sprintf("Event %03d", idx),
		Start:     start,
		End:       start.Add(30 * time.Minute),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventOwner overrides the owning user.
func WithEventOwner(ownerID string) EventOption {
	return func(f *EventFixture) {
		f.OwnerID = ownerID
	}
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventDescription sets the description.
func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) {
		f.Description = &description
	}
}

// WithEventLocation sets the location.
func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) {
		f.Location = &location
	}
}

// WithEventCategory sets the category.
func WithEventCategory(category string) EventOption {
	return func(f *EventFixture) {
		f.Category = &category
	}
}

// WithEventColor sets the hex color.
func WithEventColor(color string) EventOption {
	return func(f *EventFixture) {
		f.Color = &color
	}
}

// WithEventTimes sets the start and end of the event.
func WithEventTimes(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventAllDay marks the event as all-day.
func WithEventAllDay(allDay bool) EventOption {
	return func(f *EventFixture) {
		f.AllDay = allDay
	}
}

// WithEventProviderID links the event to a provider record.
func WithEventProviderID(providerEventID string) EventOption {
	return func(f *EventFixture) {
		f.ProviderEventID = &providerEventID
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Title:           f.Title,
		Description:     copyStringPtr(f.Description),
		Location:        copyStringPtr(f.Location),
		Category:        copyStringPtr(f.Category),
		Color:           copyStringPtr(f.Color),
		Start:           f.Start,
		End:             f.End,
		AllDay:          f.AllDay,
		ProviderEventID: copyStringPtr(f.ProviderEventID),
		CreatedAt:       f.CreatedAt,
		CreatedBy:       f.OwnerID,
		UpdatedAt:       f.UpdatedAt,
		UpdatedBy:       f.OwnerID,
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Title:           f.Title,
		Description:     copyStringPtr(f.Description),
		Location:        copyStringPtr(f.Location),
		Category:        copyStringPtr(f.Category),
		Color:           copyStringPtr(f.Color),
		Start:           f.Start,
		End:             f.End,
		AllDay:          f.AllDay,
		ProviderEventID: copyStringPtr(f.ProviderEventID),
		CreatedAt:       f.CreatedAt,
		CreatedBy:       f.OwnerID,
		UpdatedAt:       f.UpdatedAt,
		UpdatedBy:       f.OwnerID,
	}
}

// Input returns the fixture as an application.EventInput.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:       f.Title,
		Description: copyStringPtr(f.Description),
		Location:    copyStringPtr(f.Location),
		Category:    copyStringPtr(f.Category),
		Color:       copyStringPtr(f.Color),
		Start:       f.Start,
		End:         f.End,
		AllDay:      f.AllDay,
	}
}

// ---------------------------- Attendee fixtures ---------------------------

// AttendeeFixture represents a deterministic attendee record.
type AttendeeFixture struct {
	ID        string
	EventID   string
	Email     string
	Role      string
	Status    string
	CreatedAt time.Time
	CreatedBy string
}

// AttendeeOption configures the generated attendee fixture.
type AttendeeOption func(*AttendeeFixture)

// NewAttendeeFixture returns a deterministic attendee fixture with optional overrides.
func NewAttendeeFixture(opts ...AttendeeOption) AttendeeFixture {
	idx := atomic.AddUint64(&attendeeCounter, 1)
	fixture := AttendeeFixture{
		ID:        fmt.Sprintf("attendee-%03d", idx),
		EventID:   "event-001",
		Email:     fmt.Sprintf("guest-%03d@example.com", idx),
		Role:      string(application.AttendeeRoleAttendee),
		Status:    string(application.AttendeeStatusPending),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
		CreatedBy: "user-001",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAttendeeID overrides the generated attendee ID.
func WithAttendeeID(id string) AttendeeOption {
	return func(f *AttendeeFixture) {
		f.ID = id
	}
}

// WithAttendeeEvent overrides the event the attendee belongs to.
func WithAttendeeEvent(eventID string) AttendeeOption {
	return func(f *AttendeeFixture) {
		f.EventID = eventID
	}
}

// WithAttendeeEmail overrides the generated email address.
func WithAttendeeEmail(email string) AttendeeOption {
	return func(f *AttendeeFixture) {
		f.Email = email
	}
}

// WithAttendeeRole overrides the default attendee role.
func WithAttendeeRole(role application.AttendeeRole) AttendeeOption {
	return func(f *AttendeeFixture) {
		f.Role = string(role)
	}
}

// WithAttendeeStatus overrides the default pending status.
func WithAttendeeStatus(status application.AttendeeStatus) AttendeeOption {
	return func(f *AttendeeFixture) {
		f.Status = string(status)
	}
}

// WithAttendeeCreatedAt sets the creation timestamp.
func WithAttendeeCreatedAt(t time.Time) AttendeeOption {
	return func(f *AttendeeFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Attendee value.
func (f AttendeeFixture) Application() application.Attendee {
	return application.Attendee{
		ID:        f.ID,
		EventID:   f.EventID,
		Email:     f.Email,
		Role:      application.AttendeeRole(f.Role),
		Status:    application.AttendeeStatus(f.Status),
		CreatedAt: f.CreatedAt,
		CreatedBy: f.CreatedBy,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Attendee value.
func (f AttendeeFixture) Persistence() persistence.Attendee {
	return persistence.Attendee{
		ID:        f.ID,
		EventID:   f.EventID,
		Email:     f.Email,
		Role:      f.Role,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		CreatedBy: f.CreatedBy,
		UpdatedAt: f.CreatedAt,
	}
}

// ---------------------------- Activity fixtures ---------------------------

// ActivityFixture represents a deterministic activity log entry.
type ActivityFixture struct {
	ID        string
	UserID    string
	Type      application.ActivityType
	Details   string
	CreatedAt time.Time
}

// ActivityOption configures the generated activity fixture.
type ActivityOption func(*ActivityFixture)

// NewActivityFixture returns a deterministic activity fixture with optional overrides.
func NewActivityFixture(opts ...ActivityOption) ActivityFixture {
	idx := atomic.AddUint64(&activityCounter, 1)
	fixture := ActivityFixture{
		ID:        fmt.Sprintf("activity-%03d", idx),
		UserID:    "user-001",
		Type:      application.ActivityViewEvent,
		Details:   fmt.Sprintf("Activity %03d", idx),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithActivityID overrides the generated activity ID.
func WithActivityID(id string) ActivityOption {
	return func(f *ActivityFixture) {
		f.ID = id
	}
}

// WithActivityUser overrides the acting user.
func WithActivityUser(userID string) ActivityOption {
	return func(f *ActivityFixture) {
		f.UserID = userID
	}
}

// WithActivityType overrides the activity type.
func WithActivityType(activityType application.ActivityType) ActivityOption {
	return func(f *ActivityFixture) {
		f.Type = activityType
	}
}

// WithActivityCreatedAt sets the creation timestamp.
func WithActivityCreatedAt(t time.Time) ActivityOption {
	return func(f *ActivityFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Activity value.
func (f ActivityFixture) Application() application.Activity {
	return application.Activity{
		ID:        f.ID,
		UserID:    f.UserID,
		Type:      f.Type,
		Details:   f.Details,
		CreatedAt: f.CreatedAt,
		CreatedBy: f.UserID,
	}
}

// Persistence returns the fixture as a persistence.Activity value.
func (f ActivityFixture) Persistence() persistence.Activity {
	return persistence.Activity{
		ID:        f.ID,
		UserID:    f.UserID,
		Type:      string(f.Type),
		Details:   f.Details,
		CreatedAt: f.CreatedAt,
		CreatedBy: f.UserID,
	}
}

// ------------------------------ Principals -------------------------------

// Principal returns an application.Principal for userID with a derived email.
func Principal(userID string) application.Principal {
	return application.Principal{
		UserID: userID,
		Email:  userID + "@example.com",
		Name:   userID,
	}
}

func copyStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
