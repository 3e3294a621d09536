package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultListWindow   = 30 * 24 * time.Hour
	statsWindow         = 30 * 24 * time.Hour
	searchResultLimit   = 10
	upcomingResultLimit = 5
)

// EventService orchestrates validation, authorization, persistence and
// provider mirroring for events.
type EventService struct {
	events      EventRepository
	attendees   AttendeeRepository
	activities  ActivityRepository
	mirror      mirror
	log         activityLog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService constructs an event service with the provided dependencies.
func NewEventService(events EventRepository, attendees AttendeeRepository, activities ActivityRepository, providers ProviderFactory, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, attendees, activities, providers, idGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an event service with a specified logger.
func NewEventServiceWithLogger(events EventRepository, attendees AttendeeRepository, activities ActivityRepository, providers ProviderFactory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		attendees:   attendees,
		activities:  activities,
		mirror:      mirror{providers: providers},
		log:         activityLog{repo: activities, idGenerator: idGenerator, now: now},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// ListEvents returns the principal's events starting within the requested
// window, ordered by start time.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListEvents", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events listed")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		return nil, nil
	}

	start := s.now()
	if params.Start != nil {
		start = *params.Start
	}
	end := start.Add(defaultListWindow)
	if params.End != nil {
		end = *params.End
	}
	if end.Before(start) {
		err = newValidationError("end", "end must not be before start")
		return
	}

	events, err = s.events.ListEvents(ctx, EventQuery{
		OwnerID:     params.Principal.UserID,
		StartsFrom:  &start,
		StartsUntil: &end,
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

// GetEvent returns an event visible to the principal as owner or attendee.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetEvent", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event retrieved")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	event, err = authorizeEvent(ctx, s.events, s.attendees, eventID, principal, "")
	if err != nil {
		return
	}

	s.log.append(ctx, logger, principal, ActivityViewEvent, fmt.Sprintf("Viewed event: %s", event.Title))
	return
}

// CreateEvent validates input, persists a new event owned by the principal
// and mirrors it to the principal's calendar provider when possible.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (result EventResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"event_id", result.Event.ID,
			"provider_sync", string(result.ProviderSync.Status),
		).InfoContext(ctx, "event created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	vErr := validateEventInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	event := Event{
		ID:          s.idGenerator(),
		OwnerID:     params.Principal.UserID,
		Title:       strings.TrimSpace(params.Input.Title),
		Description: normalizeOptionalString(params.Input.Description),
		Location:    normalizeOptionalString(params.Input.Location),
		Category:    normalizeOptionalString(params.Input.Category),
		Color:       normalizeColor(params.Input.Color),
		Start:       params.Input.Start,
		End:         params.Input.End,
		AllDay:      params.Input.AllDay,
		CreatedAt:   now,
		CreatedBy:   params.Principal.UserID,
		UpdatedAt:   now,
		UpdatedBy:   params.Principal.UserID,
	}

	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	event, err = s.events.CreateEvent(ctx, event)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	result.Event = event

	providerID, sync := s.mirror.create(ctx, logger, params.Principal, event)
	result.ProviderSync = sync
	if providerID != "" {
		linked := event
		linked.ProviderEventID = &providerID
		persisted, linkErr := s.events.UpdateEvent(ctx, linked)
		if linkErr != nil {
			logger.WarnContext(ctx, "failed to store provider event id",
				"event_id", event.ID,
				"provider_event_id", providerID,
				"error", linkErr,
			)
			result.ProviderSync = ProviderSync{Status: ProviderSyncFailed, Reason: "failed to link provider event"}
		} else {
			result.Event = persisted
		}
	}

	s.log.append(ctx, logger, params.Principal, ActivityCreateEvent, fmt.Sprintf("Created event: %s", result.Event.Title))
	return
}

// UpdateEvent applies a partial update to one of the principal's events and
// mirrors the changed fields when the event is linked to a provider.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (result EventResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("provider_sync", string(result.ProviderSync.Status)).InfoContext(ctx, "event updated")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	var existing Event
	existing, err = s.ownedEvent(ctx, params.Principal, params.EventID)
	if err != nil {
		return
	}

	vErr := validateEventPatch(params.Patch)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := applyEventPatch(existing, params.Patch)
	if updated.End.Before(updated.Start) {
		err = newValidationError("end", "end must not be before start")
		return
	}
	updated.UpdatedAt = s.now()
	updated.UpdatedBy = params.Principal.UserID

	var persisted Event
	persisted, err = s.events.UpdateEvent(ctx, updated)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	result.Event = persisted
	result.ProviderSync = s.mirror.update(ctx, logger, params.Principal, persisted, diffProviderFields(existing, persisted))

	s.log.append(ctx, logger, params.Principal, ActivityUpdateEvent, fmt.Sprintf("Updated event: %s", persisted.Title))
	return
}

// DeleteEvent removes one of the principal's events. The local record is
// removed regardless of the provider outcome.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) (sync ProviderSync, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.UserID,
		"event_id", eventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("provider_sync", string(sync.Status)).InfoContext(ctx, "event deleted")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	var existing Event
	existing, err = s.ownedEvent(ctx, principal, eventID)
	if err != nil {
		return
	}

	if err = s.events.DeleteEvent(ctx, existing.ID); err != nil {
		err = mapRepoError(err)
		return
	}

	sync = s.mirror.delete(ctx, logger, principal, existing)

	s.log.append(ctx, logger, principal, ActivityDeleteEvent, fmt.Sprintf("Deleted event: %s", existing.Title))
	return
}

// SearchEvents matches the query against title, description and location of
// the principal's events, newest first.
func (s *EventService) SearchEvents(ctx context.Context, params SearchEventsParams) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SearchEvents", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to search events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events searched")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	query := strings.TrimSpace(params.Query)
	switch {
	case query == "":
		err = newValidationError("q", "search query is required")
		return
	case utf8.RuneCountInString(query) > maxSearchQueryLength:
		err = newValidationError("q", fmt.Sprintf("search query must be at most %d characters", maxSearchQueryLength))
		return
	}
	if s.events == nil {
		return nil, nil
	}

	events, err = s.events.ListEvents(ctx, EventQuery{
		OwnerID:    params.Principal.UserID,
		Text:       query,
		Descending: true,
		Limit:      searchResultLimit,
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.log.append(ctx, logger, params.Principal, ActivitySearchEvents, fmt.Sprintf("Searched events: %s", query))
	return
}

// UpcomingEvents returns the principal's next events starting from now.
func (s *EventService) UpcomingEvents(ctx context.Context, principal Principal) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpcomingEvents", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list upcoming events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "upcoming events listed")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		return nil, nil
	}

	now := s.now()
	events, err = s.events.ListEvents(ctx, EventQuery{
		OwnerID:    principal.UserID,
		StartsFrom: &now,
		Limit:      upcomingResultLimit,
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.log.append(ctx, logger, principal, ActivityViewUpcomingEvents, fmt.Sprintf("Viewed %d upcoming events", len(events)))
	return
}

// Categories returns the principal's categories with usage counts, most used first.
func (s *EventService) Categories(ctx context.Context, principal Principal) (categories []CategoryCount, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Categories", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list categories", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(categories)).InfoContext(ctx, "categories listed")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		return nil, nil
	}

	categories, err = s.events.CategoryCounts(ctx, principal.UserID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.log.append(ctx, logger, principal, ActivityViewCategories, fmt.Sprintf("Viewed %d categories", len(categories)))
	return
}

// Stats summarises the principal's calendar over the last 30 days.
func (s *EventService) Stats(ctx context.Context, principal Principal) (stats Stats, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Stats", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute stats", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "stats computed")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	now := s.now()
	since := now.Add(-statsWindow)
	stats.GeneratedAt = now

	if stats.TotalEvents, err = s.events.CountEvents(ctx, EventQuery{OwnerID: principal.UserID}); err != nil {
		err = mapRepoError(err)
		return
	}
	if stats.UpcomingEvents, err = s.events.CountEvents(ctx, EventQuery{OwnerID: principal.UserID, StartsFrom: &now}); err != nil {
		err = mapRepoError(err)
		return
	}
	if stats.CompletedEvents, err = s.events.CountEvents(ctx, EventQuery{OwnerID: principal.UserID, EndsFrom: &since, EndsUntil: &now}); err != nil {
		err = mapRepoError(err)
		return
	}
	if s.activities != nil {
		if stats.RecentActivities, err = s.activities.CountActivities(ctx, ActivityQuery{UserID: principal.UserID, Since: &since}); err != nil {
			err = mapRepoError(err)
			return
		}
	}
	if stats.CategoryDistribution, err = s.events.CategoryCounts(ctx, principal.UserID); err != nil {
		err = mapRepoError(err)
		return
	}

	s.log.append(ctx, logger, principal, ActivityViewStats, "Viewed calendar statistics")
	return
}

// ownedEvent loads an event and hides it unless principal owns it.
func (s *EventService) ownedEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if s.events == nil || eventID == "" {
		return Event{}, ErrNotFound
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	if event.OwnerID != principal.UserID {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func applyEventPatch(event Event, patch EventPatch) Event {
	updated := event
	if patch.Title != nil {
		updated.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		updated.Description = normalizeOptionalString(patch.Description)
	}
	if patch.Location != nil {
		updated.Location = normalizeOptionalString(patch.Location)
	}
	if patch.Category != nil {
		updated.Category = normalizeOptionalString(patch.Category)
	}
	if patch.Color != nil {
		updated.Color = normalizeColor(patch.Color)
	}
	if patch.Start != nil {
		updated.Start = *patch.Start
	}
	if patch.End != nil {
		updated.End = *patch.End
	}
	if patch.AllDay != nil {
		updated.AllDay = *patch.AllDay
	}
	return updated
}
