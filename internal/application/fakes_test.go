package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// fakeStore is an in-memory implementation of the repository ports with the
// same uniqueness rules as the SQL store.
type fakeStore struct {
	mu         sync.Mutex
	events     map[string]Event
	attendees  []Attendee
	activities []Activity

	createErr   error
	updateErr   error
	activityErr error
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[string]Event)}
}

func (f *fakeStore) CreateEvent(ctx context.Context, event Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Event{}, f.createErr
	}
	if _, exists := f.events[event.ID]; exists {
		return Event{}, ErrConflict
	}
	if event.ProviderEventID != nil {
		for _, other := range f.events {
			if other.ProviderEventID != nil && *other.ProviderEventID == *event.ProviderEventID {
				return Event{}, ErrConflict
			}
		}
	}
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeStore) GetEvent(ctx context.Context, id string) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (f *fakeStore) FindEventByProviderID(ctx context.Context, providerEventID string) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ProviderEventID != nil && *event.ProviderEventID == providerEventID {
			return event, nil
		}
	}
	return Event{}, ErrNotFound
}

func (f *fakeStore) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return Event{}, f.updateErr
	}
	if _, ok := f.events[event.ID]; !ok {
		return Event{}, ErrNotFound
	}
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return ErrNotFound
	}
	delete(f.events, id)
	kept := f.attendees[:0]
	for _, a := range f.attendees {
		if a.EventID != id {
			kept = append(kept, a)
		}
	}
	f.attendees = kept
	return nil
}

func (f *fakeStore) ListEvents(ctx context.Context, query EventQuery) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, event := range f.events {
		if matchesQuery(event, query) {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if query.Descending {
			return out[i].Start.After(out[j].Start)
		}
		return out[i].Start.Before(out[j].Start)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (f *fakeStore) CountEvents(ctx context.Context, query EventQuery) (int, error) {
	query.Limit = 0
	events, err := f.ListEvents(ctx, query)
	return len(events), err
}

func (f *fakeStore) CategoryCounts(ctx context.Context, ownerID string) ([]CategoryCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, event := range f.events {
		if event.OwnerID == ownerID && event.Category != nil {
			counts[*event.Category]++
		}
	}
	var out []CategoryCount
	for category, count := range counts {
		out = append(out, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Category < out[j].Category
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func matchesQuery(event Event, query EventQuery) bool {
	if query.OwnerID != "" && event.OwnerID != query.OwnerID {
		return false
	}
	if query.StartsFrom != nil && event.Start.Before(*query.StartsFrom) {
		return false
	}
	if query.StartsUntil != nil && event.Start.After(*query.StartsUntil) {
		return false
	}
	if query.EndsFrom != nil && event.End.Before(*query.EndsFrom) {
		return false
	}
	if query.EndsUntil != nil && event.End.After(*query.EndsUntil) {
		return false
	}
	if query.Text != "" {
		needle := strings.ToLower(query.Text)
		haystack := strings.ToLower(event.Title + "\n" + derefString(event.Description) + "\n" + derefString(event.Location))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func (f *fakeStore) ListAttendees(ctx context.Context, eventID string) ([]Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Attendee
	for _, a := range f.attendees {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) FindAttendees(ctx context.Context, eventID, email string) ([]Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Attendee
	for _, a := range f.attendees {
		if a.EventID == eventID && a.Email == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AddAttendee(ctx context.Context, attendee Attendee, activity Activity) (Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[attendee.EventID]; !ok {
		return Attendee{}, ErrNotFound
	}
	for _, a := range f.attendees {
		if a.EventID == attendee.EventID && a.Email == attendee.Email {
			return Attendee{}, ErrConflict
		}
	}
	if f.activityErr != nil {
		return Attendee{}, f.activityErr
	}
	f.attendees = append(f.attendees, attendee)
	f.activities = append(f.activities, activity)
	return attendee, nil
}

func (f *fakeStore) RemoveAttendees(ctx context.Context, eventID, email string, activity Activity) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activityErr != nil {
		return 0, f.activityErr
	}
	removed := 0
	kept := f.attendees[:0]
	for _, a := range f.attendees {
		if a.EventID == eventID && a.Email == email {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	f.attendees = kept
	f.activities = append(f.activities, activity)
	return removed, nil
}

func (f *fakeStore) UpdateAttendeeStatus(ctx context.Context, eventID, email string, status AttendeeStatus, updatedAt time.Time, activity Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for i, a := range f.attendees {
		if a.EventID == eventID && a.Email == email {
			f.attendees[i].Status = status
			f.attendees[i].UpdatedAt = updatedAt
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	f.activities = append(f.activities, activity)
	return nil
}

func (f *fakeStore) CreateActivity(ctx context.Context, activity Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activityErr != nil {
		return f.activityErr
	}
	f.activities = append(f.activities, activity)
	return nil
}

func (f *fakeStore) ListActivities(ctx context.Context, query ActivityQuery) ([]Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Activity
	for i := len(f.activities) - 1; i >= 0; i-- {
		a := f.activities[i]
		if query.UserID != "" && a.UserID != query.UserID {
			continue
		}
		if query.Since != nil && a.CreatedAt.Before(*query.Since) {
			continue
		}
		out = append(out, a)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CountActivities(ctx context.Context, query ActivityQuery) (int, error) {
	query.Limit = 0
	out, err := f.ListActivities(ctx, query)
	return len(out), err
}

func (f *fakeStore) activitiesOfType(activityType ActivityType) []Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Activity
	for _, a := range f.activities {
		if a.Type == activityType {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeStore) seedEvent(event Event) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = event
	return event
}

func (f *fakeStore) seedAttendee(attendee Attendee) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attendees = append(f.attendees, attendee)
}

// mockProvider is a testify mock of CalendarProvider.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateEvent(ctx context.Context, event ProviderEvent) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) UpdateEvent(ctx context.Context, providerEventID string, patch ProviderEventPatch) error {
	args := m.Called(ctx, providerEventID, patch)
	return args.Error(0)
}

func (m *mockProvider) DeleteEvent(ctx context.Context, providerEventID string) error {
	args := m.Called(ctx, providerEventID)
	return args.Error(0)
}

func (m *mockProvider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]RemoteEvent, error) {
	args := m.Called(ctx, timeMin, timeMax)
	events, _ := args.Get(0).([]RemoteEvent)
	return events, args.Error(1)
}

func factoryFor(provider CalendarProvider) ProviderFactory {
	return ProviderFactoryFunc(func(ctx context.Context, credential string) (CalendarProvider, error) {
		if credential == "" {
			return nil, errors.New("credential required")
		}
		return provider, nil
	})
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Invitation
	err  error
}

func (r *recordingSender) SendInvitation(ctx context.Context, invitation Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, invitation)
	return r.err
}

type staticTokens struct{}

func (staticTokens) SignInvitation(eventID, email string) string {
	return fmt.Sprintf("token:%s:%s", eventID, email)
}

func (staticTokens) VerifyInvitation(eventID, email, token string) bool {
	return token == fmt.Sprintf("token:%s:%s", eventID, email)
}

func sequenceIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func ownerPrincipal() Principal {
	return Principal{UserID: "user-owner", Email: "owner@example.com", Name: "Olivia Owner", ProviderToken: "token-owner"}
}

func seededEvent(id, ownerID string) Event {
	return Event{
		ID:        id,
		OwnerID:   ownerID,
		Title:     "Planning",
		Start:     testNow.Add(24 * time.Hour),
		End:       testNow.Add(25 * time.Hour),
		CreatedAt: testNow,
		CreatedBy: ownerID,
		UpdatedAt: testNow,
		UpdatedBy: ownerID,
	}
}
