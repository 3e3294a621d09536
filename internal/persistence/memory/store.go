// Package memory provides a process-local implementation of the persistence
// repositories. It mirrors the constraints of the SQLite schema and is used by
// tests and the --store=memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/personal-calendar/internal/persistence"
)

// Store keeps events, attendees and activities in maps guarded by one lock.
type Store struct {
	mu         sync.RWMutex
	events     map[string]persistence.Event
	attendees  map[string]persistence.Attendee
	activities []persistence.Activity
}

var (
	_ persistence.EventRepository    = (*Store)(nil)
	_ persistence.AttendeeRepository = (*Store)(nil)
	_ persistence.ActivityRepository = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		events:    make(map[string]persistence.Event),
		attendees: make(map[string]persistence.Attendee),
	}
}

// Migrate is a no-op for the in-memory implementation.
func (s *Store) Migrate(context.Context) error {
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// --- EventRepository implementation ---

// CreateEvent stores a new event.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkEvent(event); err != nil {
		return err
	}
	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("%w: event %s already exists", persistence.ErrDuplicate, event.ID)
	}
	if err := s.ensureUniqueProviderIDLocked(event.ID, event.ProviderEventID); err != nil {
		return err
	}

	s.events[event.ID] = cloneEvent(event)
	return nil
}

// UpdateEvent replaces the mutable fields of an existing event.
func (s *Store) UpdateEvent(ctx context.Context, event persistence.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[event.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := checkEvent(event); err != nil {
		return err
	}
	if err := s.ensureUniqueProviderIDLocked(event.ID, event.ProviderEventID); err != nil {
		return err
	}

	updated := cloneEvent(event)
	updated.OwnerID = existing.OwnerID
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	s.events[event.ID] = updated
	return nil
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return cloneEvent(event), nil
}

// GetEventByProviderID retrieves the event linked to a provider record.
func (s *Store) GetEventByProviderID(ctx context.Context, providerEventID string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if providerEventID == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	for _, event := range s.events {
		if event.ProviderEventID != nil && *event.ProviderEventID == providerEventID {
			return cloneEvent(event), nil
		}
	}
	return persistence.Event{}, persistence.ErrNotFound
}

// ListEvents returns events matching filter ordered by start time.
func (s *Store) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]persistence.Event, 0)
	for _, event := range s.events {
		if matchesEvent(event, filter) {
			events = append(events, cloneEvent(event))
		}
	}

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if filter.Descending {
			a, b = b, a
		}
		if a.Start.Equal(b.Start) {
			return a.ID < b.ID
		}
		return a.Start.Before(b.Start)
	})

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

// CountEvents returns the number of events matching filter.
func (s *Store) CountEvents(ctx context.Context, filter persistence.EventFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, event := range s.events {
		if matchesEvent(event, filter) {
			count++
		}
	}
	return count, nil
}

// CategoryCounts groups the owner's categorised events, most used first.
func (s *Store) CategoryCounts(ctx context.Context, ownerID string) ([]persistence.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int)
	for _, event := range s.events {
		if event.OwnerID != ownerID || event.Category == nil || *event.Category == "" {
			continue
		}
		totals[*event.Category]++
	}

	counts := make([]persistence.CategoryCount, 0, len(totals))
	for category, count := range totals {
		counts = append(counts, persistence.CategoryCount{Category: category, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count == counts[j].Count {
			return counts[i].Category < counts[j].Category
		}
		return counts[i].Count > counts[j].Count
	})
	return counts, nil
}

// DeleteEvent removes an event and its attendees.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, id)
	for attendeeID, attendee := range s.attendees {
		if attendee.EventID == id {
			delete(s.attendees, attendeeID)
		}
	}
	return nil
}

// --- AttendeeRepository implementation ---

// ListAttendees returns the attendees of an event ordered by creation time.
func (s *Store) ListAttendees(ctx context.Context, eventID string) ([]persistence.Attendee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.attendeesLocked(func(a persistence.Attendee) bool { return a.EventID == eventID }), nil
}

// FindAttendees returns the rows matching (eventID, email).
func (s *Store) FindAttendees(ctx context.Context, eventID, email string) ([]persistence.Attendee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.attendeesLocked(func(a persistence.Attendee) bool {
		return a.EventID == eventID && a.Email == email
	}), nil
}

// CreateAttendeeWithActivity inserts attendee and activity atomically.
func (s *Store) CreateAttendeeWithActivity(ctx context.Context, attendee persistence.Attendee, activity persistence.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[attendee.EventID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if err := checkAttendee(attendee); err != nil {
		return err
	}
	if _, ok := s.attendees[attendee.ID]; ok {
		return fmt.Errorf("%w: attendee %s already exists", persistence.ErrDuplicate, attendee.ID)
	}
	for _, existing := range s.attendees {
		if existing.EventID == attendee.EventID && existing.Email == attendee.Email {
			return fmt.Errorf("%w: attendee %s already invited", persistence.ErrDuplicate, attendee.Email)
		}
	}
	if err := s.checkActivityLocked(activity); err != nil {
		return err
	}

	s.attendees[attendee.ID] = attendee
	s.activities = append(s.activities, activity)
	return nil
}

// DeleteAttendeesWithActivity removes the rows matching (eventID, email) and
// records activity atomically.
func (s *Store) DeleteAttendeesWithActivity(ctx context.Context, eventID, email string, activity persistence.Activity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActivityLocked(activity); err != nil {
		return 0, err
	}

	removed := 0
	for id, attendee := range s.attendees {
		if attendee.EventID == eventID && attendee.Email == email {
			delete(s.attendees, id)
			removed++
		}
	}
	s.activities = append(s.activities, activity)
	return removed, nil
}

// UpdateAttendeeStatusWithActivity changes an attendee's status and records
// activity atomically.
func (s *Store) UpdateAttendeeStatusWithActivity(ctx context.Context, eventID, email, status string, updatedAt time.Time, activity persistence.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validStatus(status) {
		return persistence.ErrConstraintViolation
	}
	if err := s.checkActivityLocked(activity); err != nil {
		return err
	}

	updated := 0
	for id, attendee := range s.attendees {
		if attendee.EventID == eventID && attendee.Email == email {
			attendee.Status = status
			attendee.UpdatedAt = updatedAt
			s.attendees[id] = attendee
			updated++
		}
	}
	if updated == 0 {
		return persistence.ErrNotFound
	}
	s.activities = append(s.activities, activity)
	return nil
}

// --- ActivityRepository implementation ---

// CreateActivity appends an entry to the activity log.
func (s *Store) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActivityLocked(activity); err != nil {
		return err
	}
	s.activities = append(s.activities, activity)
	return nil
}

// ListActivities returns matching entries, newest first.
func (s *Store) ListActivities(ctx context.Context, filter persistence.ActivityFilter) ([]persistence.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities := make([]persistence.Activity, 0)
	for _, activity := range s.activities {
		if matchesActivity(activity, filter) {
			activities = append(activities, activity)
		}
	}
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].ID > activities[j].ID
		}
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if filter.Limit > 0 && len(activities) > filter.Limit {
		activities = activities[:filter.Limit]
	}
	return activities, nil
}

// CountActivities returns the number of matching entries.
func (s *Store) CountActivities(ctx context.Context, filter persistence.ActivityFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, activity := range s.activities {
		if matchesActivity(activity, filter) {
			count++
		}
	}
	return count, nil
}

// --- helpers ---

func (s *Store) ensureUniqueProviderIDLocked(eventID string, providerEventID *string) error {
	if providerEventID == nil {
		return nil
	}
	for id, event := range s.events {
		if id == eventID || event.ProviderEventID == nil {
			continue
		}
		if *event.ProviderEventID == *providerEventID {
			return fmt.Errorf("%w: provider event %s already linked", persistence.ErrDuplicate, *providerEventID)
		}
	}
	return nil
}

func (s *Store) checkActivityLocked(activity persistence.Activity) error {
	if activity.ID == "" || activity.UserID == "" || activity.Type == "" {
		return persistence.ErrConstraintViolation
	}
	for _, existing := range s.activities {
		if existing.ID == activity.ID {
			return fmt.Errorf("%w: activity %s already exists", persistence.ErrDuplicate, activity.ID)
		}
	}
	return nil
}

func (s *Store) attendeesLocked(match func(persistence.Attendee) bool) []persistence.Attendee {
	attendees := make([]persistence.Attendee, 0)
	for _, attendee := range s.attendees {
		if match(attendee) {
			attendees = append(attendees, attendee)
		}
	}
	sort.Slice(attendees, func(i, j int) bool {
		if attendees[i].CreatedAt.Equal(attendees[j].CreatedAt) {
			return attendees[i].ID < attendees[j].ID
		}
		return attendees[i].CreatedAt.Before(attendees[j].CreatedAt)
	})
	return attendees
}

func checkEvent(event persistence.Event) error {
	if event.ID == "" || event.OwnerID == "" || event.Title == "" {
		return persistence.ErrConstraintViolation
	}
	if event.End.Before(event.Start) {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func checkAttendee(attendee persistence.Attendee) error {
	if attendee.ID == "" || attendee.Email == "" {
		return persistence.ErrConstraintViolation
	}
	switch attendee.Role {
	case "owner", "attendee", "guest":
	default:
		return persistence.ErrConstraintViolation
	}
	if !validStatus(attendee.Status) {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func validStatus(status string) bool {
	switch status {
	case "pending", "accepted", "declined", "tentative":
		return true
	}
	return false
}

func matchesEvent(event persistence.Event, filter persistence.EventFilter) bool {
	if filter.OwnerID != "" && event.OwnerID != filter.OwnerID {
		return false
	}
	if filter.StartsFrom != nil && event.Start.Before(*filter.StartsFrom) {
		return false
	}
	if filter.StartsUntil != nil && event.Start.After(*filter.StartsUntil) {
		return false
	}
	if filter.EndsFrom != nil && event.End.Before(*filter.EndsFrom) {
		return false
	}
	if filter.EndsUntil != nil && event.End.After(*filter.EndsUntil) {
		return false
	}
	if text := strings.ToLower(strings.TrimSpace(filter.Text)); text != "" {
		if !containsFold(event.Title, text) && !containsFold(deref(event.Description), text) && !containsFold(deref(event.Location), text) {
			return false
		}
	}
	return true
}

func matchesActivity(activity persistence.Activity, filter persistence.ActivityFilter) bool {
	if filter.UserID != "" && activity.UserID != filter.UserID {
		return false
	}
	if filter.Since != nil && activity.CreatedAt.Before(*filter.Since) {
		return false
	}
	return true
}

func containsFold(value, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(value), lowerNeedle)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneEvent(event persistence.Event) persistence.Event {
	clone := event
	clone.Description = cloneStringPtr(event.Description)
	clone.Location = cloneStringPtr(event.Location)
	clone.Category = cloneStringPtr(event.Category)
	clone.Color = cloneStringPtr(event.Color)
	clone.ProviderEventID = cloneStringPtr(event.ProviderEventID)
	return clone
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
