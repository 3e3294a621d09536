package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/testfixtures"
)

func newPersistenceEvent(opts ...testfixtures.EventOption) persistence.Event {
	return testfixtures.NewEventFixture(opts...).Persistence()
}

func newPersistenceAttendee(opts ...testfixtures.AttendeeOption) persistence.Attendee {
	return testfixtures.NewAttendeeFixture(opts...).Persistence()
}

func newPersistenceActivity(opts ...testfixtures.ActivityOption) persistence.Activity {
	return testfixtures.NewActivityFixture(opts...).Persistence()
}

func forEachStore(t *testing.T, fn func(t *testing.T, h *testfixtures.StoreHarness)) {
	t.Helper()
	for _, name := range []string{"sqlite", "memory"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var h *testfixtures.StoreHarness
			if name == "sqlite" {
				h = testfixtures.NewSQLiteHarness(t)
			} else {
				h = testfixtures.NewMemoryHarness(t)
			}
			fn(t, h)
		})
	}
}

func TestEventRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes events", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			base := testfixtures.ReferenceTime()
			event := newPersistenceEvent(
				testfixtures.WithEventID("event-crud"),
				testfixtures.WithEventOwner("user-a"),
				testfixtures.WithEventTitle("Kickoff"),
				testfixtures.WithEventDescription("Quarterly kickoff"),
				testfixtures.WithEventColor("#2196f3"),
				testfixtures.WithEventTimes(base, base.Add(time.Hour)),
			)
			require.NoError(t, h.Events.CreateEvent(ctx, event))

			fetched, err := h.Events.GetEvent(ctx, event.ID)
			require.NoError(t, err)
			assert.Equal(t, event, fetched)

			event.Title = "Kickoff (moved)"
			event.Location = nil
			event.ProviderEventID = stringPtr("g-1")
			event.Start = base.Add(2 * time.Hour)
			event.End = base.Add(3 * time.Hour)
			event.UpdatedAt = base.Add(time.Minute)
			require.NoError(t, h.Events.UpdateEvent(ctx, event))

			fetched, err = h.Events.GetEventByProviderID(ctx, "g-1")
			require.NoError(t, err)
			assert.Equal(t, event, fetched)

			require.NoError(t, h.Events.DeleteEvent(ctx, event.ID))
			assert.ErrorIs(t, h.Events.DeleteEvent(ctx, event.ID), persistence.ErrNotFound)
			_, err = h.Events.GetEvent(ctx, event.ID)
			assert.ErrorIs(t, err, persistence.ErrNotFound)
		})
	})

	t.Run("rejects inverted ranges and duplicate provider ids", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			base := testfixtures.ReferenceTime()

			inverted := newPersistenceEvent(testfixtures.WithEventTimes(base, base.Add(-time.Minute)))
			assert.ErrorIs(t, h.Events.CreateEvent(ctx, inverted), persistence.ErrConstraintViolation)

			first := newPersistenceEvent(testfixtures.WithEventProviderID("dup"))
			require.NoError(t, h.Events.CreateEvent(ctx, first))
			second := newPersistenceEvent(testfixtures.WithEventProviderID("dup"))
			assert.ErrorIs(t, h.Events.CreateEvent(ctx, second), persistence.ErrDuplicate)

			assert.ErrorIs(t, h.Events.UpdateEvent(ctx, newPersistenceEvent()), persistence.ErrNotFound)
		})
	})

	t.Run("filters by owner, range and text", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			base := testfixtures.ReferenceTime()
			events := []persistence.Event{
				newPersistenceEvent(testfixtures.WithEventID("e1"), testfixtures.WithEventOwner("user-a"), testfixtures.WithEventTitle("Budget 100%"), testfixtures.WithEventTimes(base, base.Add(time.Hour))),
				newPersistenceEvent(testfixtures.WithEventID("e2"), testfixtures.WithEventOwner("user-a"), testfixtures.WithEventTitle("Lunch"), testfixtures.WithEventLocation("Budget Cafe"), testfixtures.WithEventTimes(base.Add(24*time.Hour), base.Add(25*time.Hour))),
				newPersistenceEvent(testfixtures.WithEventID("e3"), testfixtures.WithEventOwner("user-a"), testfixtures.WithEventTitle("Gym"), testfixtures.WithEventTimes(base.Add(48*time.Hour), base.Add(49*time.Hour))),
				newPersistenceEvent(testfixtures.WithEventID("e4"), testfixtures.WithEventOwner("user-b"), testfixtures.WithEventTitle("Budget"), testfixtures.WithEventTimes(base, base.Add(time.Hour))),
			}
			for _, e := range events {
				require.NoError(t, h.Events.CreateEvent(ctx, e))
			}

			from := base
			until := base.Add(24 * time.Hour)
			listed, err := h.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: "user-a", StartsFrom: &from, StartsUntil: &until})
			require.NoError(t, err)
			assert.Equal(t, []string{"e1", "e2"}, eventIDs(listed))

			found, err := h.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: "user-a", Text: "BUDGET", Descending: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"e2", "e1"}, eventIDs(found))

			literal, err := h.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: "user-a", Text: "0%"})
			require.NoError(t, err)
			assert.Equal(t, []string{"e1"}, eventIDs(literal))

			limited, err := h.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: "user-a", Limit: 2})
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			count, err := h.Events.CountEvents(ctx, persistence.EventFilter{OwnerID: "user-a", Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			endsUntil := base.Add(90 * time.Minute)
			ended, err := h.Events.CountEvents(ctx, persistence.EventFilter{OwnerID: "user-a", EndsUntil: &endsUntil})
			require.NoError(t, err)
			assert.Equal(t, 1, ended)
		})
	})

	t.Run("groups categories", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			for _, category := range []string{"work", "home", "work"} {
				require.NoError(t, h.Events.CreateEvent(ctx, newPersistenceEvent(testfixtures.WithEventOwner("user-c"), testfixtures.WithEventCategory(category))))
			}
			require.NoError(t, h.Events.CreateEvent(ctx, newPersistenceEvent(testfixtures.WithEventOwner("user-c"))))

			counts, err := h.Events.CategoryCounts(ctx, "user-c")
			require.NoError(t, err)
			assert.Equal(t, []persistence.CategoryCount{{Category: "work", Count: 2}, {Category: "home", Count: 1}}, counts)
		})
	})
}

func TestAttendeeRepository(t *testing.T) {
	t.Parallel()

	t.Run("writes attendees and activities atomically", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			event := newPersistenceEvent(testfixtures.WithEventOwner("user-a"))
			require.NoError(t, h.Events.CreateEvent(ctx, event))

			attendee := newPersistenceAttendee(testfixtures.WithAttendeeEvent(event.ID), testfixtures.WithAttendeeEmail("bob@example.com"))
			activity := newPersistenceActivity(testfixtures.WithActivityUser("user-a"), testfixtures.WithActivityType(application.ActivityAddAttendee))
			require.NoError(t, h.Attendees.CreateAttendeeWithActivity(ctx, attendee, activity))

			duplicate := newPersistenceAttendee(testfixtures.WithAttendeeEvent(event.ID), testfixtures.WithAttendeeEmail("bob@example.com"), testfixtures.WithAttendeeRole(application.AttendeeRoleOwner))
			second := newPersistenceActivity(testfixtures.WithActivityUser("user-a"))
			assert.ErrorIs(t, h.Attendees.CreateAttendeeWithActivity(ctx, duplicate, second), persistence.ErrDuplicate)

			rows, err := h.Attendees.FindAttendees(ctx, event.ID, "bob@example.com")
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, attendee, rows[0])

			count, err := h.Activities.CountActivities(ctx, persistence.ActivityFilter{UserID: "user-a"})
			require.NoError(t, err)
			assert.Equal(t, 1, count, "rejected attendee must not leave an activity behind")
		})
	})

	t.Run("rejects attendees for missing events", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			attendee := newPersistenceAttendee(testfixtures.WithAttendeeEvent("missing"))
			err := h.Attendees.CreateAttendeeWithActivity(ctx, attendee, newPersistenceActivity())
			assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
		})
	})

	t.Run("concurrent duplicate adds resolve to one row", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			event := newPersistenceEvent()
			require.NoError(t, h.Events.CreateEvent(ctx, event))

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				errs []error
			)
			for i := 0; i < 2; i++ {
				attendee := newPersistenceAttendee(testfixtures.WithAttendeeEvent(event.ID), testfixtures.WithAttendeeEmail("race@example.com"))
				activity := newPersistenceActivity()
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := h.Attendees.CreateAttendeeWithActivity(ctx, attendee, activity)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}()
			}
			wg.Wait()

			var ok, dup int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, persistence.ErrDuplicate):
					dup++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, 1, dup)
		})
	})

	t.Run("removes idempotently and cascades on event delete", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			event := newPersistenceEvent()
			require.NoError(t, h.Events.CreateEvent(ctx, event))
			for _, email := range []string{"a@example.com", "b@example.com"} {
				require.NoError(t, h.Attendees.CreateAttendeeWithActivity(ctx,
					newPersistenceAttendee(testfixtures.WithAttendeeEvent(event.ID), testfixtures.WithAttendeeEmail(email)),
					newPersistenceActivity()))
			}

			removed, err := h.Attendees.DeleteAttendeesWithActivity(ctx, event.ID, "a@example.com", newPersistenceActivity())
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			removed, err = h.Attendees.DeleteAttendeesWithActivity(ctx, event.ID, "a@example.com", newPersistenceActivity())
			require.NoError(t, err)
			assert.Zero(t, removed)

			require.NoError(t, h.Events.DeleteEvent(ctx, event.ID))
			rows, err := h.Attendees.ListAttendees(ctx, event.ID)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	})

	t.Run("updates status with activity", func(t *testing.T) {
		t.Parallel()
		forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
			ctx := context.Background()
			event := newPersistenceEvent()
			require.NoError(t, h.Events.CreateEvent(ctx, event))
			attendee := newPersistenceAttendee(testfixtures.WithAttendeeEvent(event.ID))
			require.NoError(t, h.Attendees.CreateAttendeeWithActivity(ctx, attendee, newPersistenceActivity()))

			at := testfixtures.ReferenceTime().Add(time.Hour)
			require.NoError(t, h.Attendees.UpdateAttendeeStatusWithActivity(ctx, event.ID, attendee.Email, "accepted", at, newPersistenceActivity()))

			rows, err := h.Attendees.FindAttendees(ctx, event.ID, attendee.Email)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "accepted", rows[0].Status)
			assert.True(t, at.Equal(rows[0].UpdatedAt))

			err = h.Attendees.UpdateAttendeeStatusWithActivity(ctx, event.ID, "nobody@example.com", "accepted", at, newPersistenceActivity())
			assert.ErrorIs(t, err, persistence.ErrNotFound)
		})
	})
}

func TestActivityRepository(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
		ctx := context.Background()
		base := testfixtures.ReferenceTime()
		for i := 0; i < 5; i++ {
			require.NoError(t, h.Activities.CreateActivity(ctx, newPersistenceActivity(
				testfixtures.WithActivityUser("user-log"),
				testfixtures.WithActivityCreatedAt(base.Add(time.Duration(i)*time.Hour)),
			)))
		}
		require.NoError(t, h.Activities.CreateActivity(ctx, newPersistenceActivity(testfixtures.WithActivityUser("user-other"))))

		listed, err := h.Activities.ListActivities(ctx, persistence.ActivityFilter{UserID: "user-log", Limit: 3})
		require.NoError(t, err)
		require.Len(t, listed, 3)
		assert.True(t, listed[0].CreatedAt.Equal(base.Add(4*time.Hour)))
		assert.True(t, listed[2].CreatedAt.Equal(base.Add(2*time.Hour)))

		since := base.Add(3 * time.Hour)
		count, err := h.Activities.CountActivities(ctx, persistence.ActivityFilter{UserID: "user-log", Since: &since})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func eventIDs(events []persistence.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func stringPtr(s string) *string { return &s }
