package application

import (
	"context"
)

// authorizeEvent returns the event when principal is its owner or one of its
// attendees. With requiredRole set, only attendees holding that role qualify.
// Every denial is reported as ErrNotFound so callers cannot probe for events
// they have no relationship with.
func authorizeEvent(ctx context.Context, events EventRepository, attendees AttendeeRepository, eventID string, principal Principal, requiredRole AttendeeRole) (Event, error) {
	if events == nil || eventID == "" || principal.UserID == "" {
		return Event{}, ErrNotFound
	}

	event, err := events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	if event.OwnerID == principal.UserID {
		return event, nil
	}

	email := normalizeEmail(principal.Email)
	if email == "" || attendees == nil {
		return Event{}, ErrNotFound
	}
	rows, err := attendees.FindAttendees(ctx, eventID, email)
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	for _, row := range rows {
		if requiredRole == "" || row.Role == requiredRole {
			return event, nil
		}
	}
	return Event{}, ErrNotFound
}
