package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	syncLookBehind = 30 * 24 * time.Hour
	syncLookAhead  = 90 * 24 * time.Hour
)

// SyncService pulls a window of remote events from the principal's calendar
// provider and upserts them locally by provider event id.
type SyncService struct {
	events      EventRepository
	providers   ProviderFactory
	log         activityLog
	observer    SyncObserver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSyncService constructs a sync service with the provided dependencies.
func NewSyncService(events EventRepository, activities ActivityRepository, providers ProviderFactory, idGenerator func() string, now func() time.Time) *SyncService {
	return NewSyncServiceWithLogger(events, activities, providers, idGenerator, now, nil)
}

// NewSyncServiceWithLogger constructs a sync service with a specified logger.
func NewSyncServiceWithLogger(events EventRepository, activities ActivityRepository, providers ProviderFactory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SyncService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		events:      events,
		providers:   providers,
		log:         activityLog{repo: activities, idGenerator: idGenerator, now: now},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetObserver registers a callback notified after every sync attempt.
func (s *SyncService) SetObserver(observer SyncObserver) {
	if s != nil {
		s.observer = observer
	}
}

func (s *SyncService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SyncService", operation, attrs...)
}

// Sync reconciles the principal's remote events from 30 days ago to 90 days
// ahead. Malformed remote events are skipped and per-event store failures do
// not abort the batch.
func (s *SyncService) Sync(ctx context.Context, principal Principal) (result SyncResult, err error) {
	if s == nil {
		err = fmt.Errorf("SyncService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Sync", "principal_id", principal.UserID)
	defer func() {
		if s.observer != nil {
			s.observer.ObserveSync(result, err)
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to sync calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"fetched", result.Fetched,
			"processed", result.Processed,
			"created", result.Created,
			"updated", result.Updated,
			"skipped", result.Skipped,
			"failed", result.Failed,
		).InfoContext(ctx, "calendar synced")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.providers == nil || !principal.HasProviderCredential() {
		err = ErrProviderCredentialMissing
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	provider, buildErr := s.providers.ForCredential(ctx, principal.ProviderToken)
	if buildErr != nil {
		err = fmt.Errorf("%w: %v", ErrProviderUnavailable, buildErr)
		return
	}

	now := s.now()
	result.WindowStart = now.Add(-syncLookBehind)
	result.WindowEnd = now.Add(syncLookAhead)

	remote, listErr := provider.ListEvents(ctx, result.WindowStart, result.WindowEnd)
	if listErr != nil {
		err = fmt.Errorf("%w: %v", ErrProviderUnavailable, listErr)
		return
	}

	result.Fetched = len(remote)
	for _, item := range remote {
		if item.ProviderID == "" || strings.TrimSpace(item.Title) == "" {
			result.Skipped++
			logger.DebugContext(ctx, "skipping malformed remote event", "provider_event_id", item.ProviderID)
			continue
		}

		created, upsertErr := s.upsert(ctx, principal, item, now)
		switch {
		case errors.Is(upsertErr, errForeignEvent):
			result.Skipped++
			logger.WarnContext(ctx, "remote event linked to another owner", "provider_event_id", item.ProviderID)
		case upsertErr != nil:
			result.Failed++
			logger.WarnContext(ctx, "failed to store remote event",
				"provider_event_id", item.ProviderID,
				"error", upsertErr,
			)
		case created:
			result.Created++
			result.Processed++
		default:
			result.Updated++
			result.Processed++
		}
	}

	s.log.append(ctx, logger, principal, ActivityCalendarSync, fmt.Sprintf("Synced %d events from calendar provider", result.Processed))
	return
}

var errForeignEvent = errors.New("provider event belongs to another owner")

func (s *SyncService) upsert(ctx context.Context, principal Principal, item RemoteEvent, now time.Time) (bool, error) {
	existing, err := s.events.FindEventByProviderID(ctx, item.ProviderID)
	switch mapped := mapRepoError(err); {
	case err == nil:
		if existing.OwnerID != principal.UserID {
			return false, errForeignEvent
		}
		updated := applyRemoteEvent(existing, item)
		updated.UpdatedAt = now
		updated.UpdatedBy = principal.UserID
		_, err = s.events.UpdateEvent(ctx, updated)
		return false, err
	case errors.Is(mapped, ErrNotFound):
	default:
		return false, err
	}

	providerID := item.ProviderID
	start := now
	if item.Start != nil {
		start = *item.Start
	}
	end := start
	if item.End != nil && !item.End.Before(start) {
		end = *item.End
	}
	event := Event{
		ID:              s.idGenerator(),
		OwnerID:         principal.UserID,
		Title:           strings.TrimSpace(item.Title),
		Description:     optionalFromString(item.Description),
		Location:        optionalFromString(item.Location),
		Start:           start,
		End:             end,
		AllDay:          item.AllDay,
		ProviderEventID: &providerID,
		CreatedAt:       now,
		CreatedBy:       principal.UserID,
		UpdatedAt:       now,
		UpdatedBy:       principal.UserID,
	}
	if _, err := s.events.CreateEvent(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}

// applyRemoteEvent copies the provider-owned fields onto a local event.
// Missing remote times leave the local range untouched.
func applyRemoteEvent(event Event, item RemoteEvent) Event {
	updated := event
	updated.Title = strings.TrimSpace(item.Title)
	updated.Description = optionalFromString(item.Description)
	updated.Location = optionalFromString(item.Location)
	if item.Start != nil {
		updated.Start = *item.Start
		updated.AllDay = item.AllDay
	}
	if item.End != nil {
		updated.End = *item.End
	}
	if updated.End.Before(updated.Start) {
		updated.End = updated.Start
	}
	return updated
}
