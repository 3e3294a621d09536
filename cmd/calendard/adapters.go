package main

import (
	"context"
	"time"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/persistence"
)

// calendarStore is the persistence surface shared by the SQLite and memory stores.
type calendarStore interface {
	persistence.EventRepository
	persistence.AttendeeRepository
	persistence.ActivityRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	stored, err := a.repo.GetEvent(ctx, event.ID)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) FindEventByProviderID(ctx context.Context, providerEventID string) (application.Event, error) {
	stored, err := a.repo.GetEventByProviderID(ctx, providerEventID)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	stored, err := a.repo.GetEvent(ctx, event.ID)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, query application.EventQuery) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, toPersistenceFilter(query))
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

func (a *eventRepositoryAdapter) CountEvents(ctx context.Context, query application.EventQuery) (int, error) {
	return a.repo.CountEvents(ctx, toPersistenceFilter(query))
}

func (a *eventRepositoryAdapter) CategoryCounts(ctx context.Context, ownerID string) ([]application.CategoryCount, error) {
	models, err := a.repo.CategoryCounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	counts := make([]application.CategoryCount, 0, len(models))
	for _, model := range models {
		counts = append(counts, application.CategoryCount{Category: model.Category, Count: model.Count})
	}
	return counts, nil
}

type attendeeRepositoryAdapter struct {
	repo persistence.AttendeeRepository
}

func newAttendeeRepositoryAdapter(repo persistence.AttendeeRepository) *attendeeRepositoryAdapter {
	return &attendeeRepositoryAdapter{repo: repo}
}

func (a *attendeeRepositoryAdapter) ListAttendees(ctx context.Context, eventID string) ([]application.Attendee, error) {
	models, err := a.repo.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return toApplicationAttendees(models), nil
}

func (a *attendeeRepositoryAdapter) FindAttendees(ctx context.Context, eventID, email string) ([]application.Attendee, error) {
	models, err := a.repo.FindAttendees(ctx, eventID, email)
	if err != nil {
		return nil, err
	}
	return toApplicationAttendees(models), nil
}

func (a *attendeeRepositoryAdapter) AddAttendee(ctx context.Context, attendee application.Attendee, activity application.Activity) (application.Attendee, error) {
	if err := a.repo.CreateAttendeeWithActivity(ctx, toPersistenceAttendee(attendee), toPersistenceActivity(activity)); err != nil {
		return application.Attendee{}, err
	}
	return attendee, nil
}

func (a *attendeeRepositoryAdapter) RemoveAttendees(ctx context.Context, eventID, email string, activity application.Activity) (int, error) {
	return a.repo.DeleteAttendeesWithActivity(ctx, eventID, email, toPersistenceActivity(activity))
}

func (a *attendeeRepositoryAdapter) UpdateAttendeeStatus(ctx context.Context, eventID, email string, status application.AttendeeStatus, updatedAt time.Time, activity application.Activity) error {
	return a.repo.UpdateAttendeeStatusWithActivity(ctx, eventID, email, string(status), updatedAt, toPersistenceActivity(activity))
}

type activityRepositoryAdapter struct {
	repo persistence.ActivityRepository
}

func newActivityRepositoryAdapter(repo persistence.ActivityRepository) *activityRepositoryAdapter {
	return &activityRepositoryAdapter{repo: repo}
}

func (a *activityRepositoryAdapter) CreateActivity(ctx context.Context, activity application.Activity) error {
	return a.repo.CreateActivity(ctx, toPersistenceActivity(activity))
}

func (a *activityRepositoryAdapter) ListActivities(ctx context.Context, query application.ActivityQuery) ([]application.Activity, error) {
	models, err := a.repo.ListActivities(ctx, persistence.ActivityFilter{
		UserID: query.UserID,
		Since:  cloneTime(query.Since),
		Limit:  query.Limit,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	activities := make([]application.Activity, 0, len(models))
	for _, model := range models {
		activities = append(activities, toApplicationActivity(model))
	}
	return activities, nil
}

func (a *activityRepositoryAdapter) CountActivities(ctx context.Context, query application.ActivityQuery) (int, error) {
	return a.repo.CountActivities(ctx, persistence.ActivityFilter{
		UserID: query.UserID,
		Since:  cloneTime(query.Since),
		Limit:  query.Limit,
	})
}

func toPersistenceFilter(query application.EventQuery) persistence.EventFilter {
	return persistence.EventFilter{
		OwnerID:     query.OwnerID,
		StartsFrom:  cloneTime(query.StartsFrom),
		StartsUntil: cloneTime(query.StartsUntil),
		EndsFrom:    cloneTime(query.EndsFrom),
		EndsUntil:   cloneTime(query.EndsUntil),
		Text:        query.Text,
		Descending:  query.Descending,
		Limit:       query.Limit,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:              model.ID,
		OwnerID:         model.OwnerID,
		Title:           model.Title,
		Description:     cloneString(model.Description),
		Location:        cloneString(model.Location),
		Category:        cloneString(model.Category),
		Color:           cloneString(model.Color),
		Start:           model.Start,
		End:             model.End,
		AllDay:          model.AllDay,
		ProviderEventID: cloneString(model.ProviderEventID),
		CreatedAt:       model.CreatedAt,
		CreatedBy:       model.CreatedBy,
		UpdatedAt:       model.UpdatedAt,
		UpdatedBy:       model.UpdatedBy,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:              event.ID,
		OwnerID:         event.OwnerID,
		Title:           event.Title,
		Description:     cloneString(event.Description),
		Location:        cloneString(event.Location),
		Category:        cloneString(event.Category),
		Color:           cloneString(event.Color),
		Start:           event.Start,
		End:             event.End,
		AllDay:          event.AllDay,
		ProviderEventID: cloneString(event.ProviderEventID),
		CreatedAt:       event.CreatedAt,
		CreatedBy:       event.CreatedBy,
		UpdatedAt:       event.UpdatedAt,
		UpdatedBy:       event.UpdatedBy,
	}
}

func toApplicationAttendees(models []persistence.Attendee) []application.Attendee {
	if len(models) == 0 {
		return nil
	}
	attendees := make([]application.Attendee, 0, len(models))
	for _, model := range models {
		attendees = append(attendees, application.Attendee{
			ID:        model.ID,
			EventID:   model.EventID,
			Email:     model.Email,
			Role:      application.AttendeeRole(model.Role),
			Status:    application.AttendeeStatus(model.Status),
			CreatedAt: model.CreatedAt,
			CreatedBy: model.CreatedBy,
			UpdatedAt: model.UpdatedAt,
		})
	}
	return attendees
}

func toPersistenceAttendee(attendee application.Attendee) persistence.Attendee {
	return persistence.Attendee{
		ID:        attendee.ID,
		EventID:   attendee.EventID,
		Email:     attendee.Email,
		Role:      string(attendee.Role),
		Status:    string(attendee.Status),
		CreatedAt: attendee.CreatedAt,
		CreatedBy: attendee.CreatedBy,
		UpdatedAt: attendee.UpdatedAt,
	}
}

func toApplicationActivity(model persistence.Activity) application.Activity {
	return application.Activity{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      application.ActivityType(model.Type),
		Details:   model.Details,
		CreatedAt: model.CreatedAt,
		CreatedBy: model.CreatedBy,
	}
}

func toPersistenceActivity(activity application.Activity) persistence.Activity {
	return persistence.Activity{
		ID:        activity.ID,
		UserID:    activity.UserID,
		Type:      string(activity.Type),
		Details:   activity.Details,
		CreatedAt: activity.CreatedAt,
		CreatedBy: activity.CreatedBy,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
