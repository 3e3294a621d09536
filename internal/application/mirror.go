package application

import (
	"context"
	"log/slog"
)

// mirror pushes local event mutations to the actor's external calendar.
// Every call is best-effort: failures are logged and reported through
// ProviderSync, never returned as errors.
type mirror struct {
	providers ProviderFactory
}

func (m mirror) provider(ctx context.Context, logger *slog.Logger, principal Principal) (CalendarProvider, ProviderSync) {
	if m.providers == nil {
		return nil, ProviderSync{Status: ProviderSyncSkipped, Reason: "calendar provider not configured"}
	}
	if !principal.HasProviderCredential() {
		return nil, ProviderSync{Status: ProviderSyncSkipped, Reason: "calendar provider credential missing"}
	}
	provider, err := m.providers.ForCredential(ctx, principal.ProviderToken)
	if err != nil {
		logger.WarnContext(ctx, "failed to build calendar provider", "error", err)
		return nil, ProviderSync{Status: ProviderSyncFailed, Reason: "calendar provider unavailable"}
	}
	return provider, ProviderSync{}
}

// create returns the provider id assigned to the mirrored event, or "" when
// the event was not mirrored.
func (m mirror) create(ctx context.Context, logger *slog.Logger, principal Principal, event Event) (string, ProviderSync) {
	provider, status := m.provider(ctx, logger, principal)
	if provider == nil {
		return "", status
	}

	providerID, err := provider.CreateEvent(ctx, toProviderEvent(event))
	if err != nil {
		logger.WarnContext(ctx, "failed to mirror created event", "event_id", event.ID, "error", err)
		return "", ProviderSync{Status: ProviderSyncFailed, Reason: "calendar provider create failed"}
	}
	if providerID == "" {
		logger.WarnContext(ctx, "calendar provider returned empty event id", "event_id", event.ID)
		return "", ProviderSync{Status: ProviderSyncFailed, Reason: "calendar provider returned no event id"}
	}
	return providerID, ProviderSync{Status: ProviderSyncSynced}
}

func (m mirror) update(ctx context.Context, logger *slog.Logger, principal Principal, event Event, patch ProviderEventPatch) ProviderSync {
	if event.ProviderEventID == nil {
		return ProviderSync{Status: ProviderSyncSkipped, Reason: "event not linked to calendar provider"}
	}
	if patch.IsEmpty() {
		return ProviderSync{Status: ProviderSyncSkipped, Reason: "no mirrored fields changed"}
	}
	provider, status := m.provider(ctx, logger, principal)
	if provider == nil {
		return status
	}

	if err := provider.UpdateEvent(ctx, *event.ProviderEventID, patch); err != nil {
		logger.WarnContext(ctx, "failed to mirror updated event",
			"event_id", event.ID,
			"provider_event_id", *event.ProviderEventID,
			"error", err,
		)
		return ProviderSync{Status: ProviderSyncFailed, Reason: "calendar provider update failed"}
	}
	return ProviderSync{Status: ProviderSyncSynced}
}

func (m mirror) delete(ctx context.Context, logger *slog.Logger, principal Principal, event Event) ProviderSync {
	if event.ProviderEventID == nil {
		return ProviderSync{Status: ProviderSyncSkipped, Reason: "event not linked to calendar provider"}
	}
	provider, status := m.provider(ctx, logger, principal)
	if provider == nil {
		return status
	}

	if err := provider.DeleteEvent(ctx, *event.ProviderEventID); err != nil {
		logger.WarnContext(ctx, "failed to mirror deleted event",
			"event_id", event.ID,
			"provider_event_id", *event.ProviderEventID,
			"error", err,
		)
		return ProviderSync{Status: ProviderSyncFailed, Reason: "calendar provider delete failed"}
	}
	return ProviderSync{Status: ProviderSyncSynced}
}

func toProviderEvent(event Event) ProviderEvent {
	return ProviderEvent{
		Title:       event.Title,
		Description: derefString(event.Description),
		Location:    derefString(event.Location),
		Color:       derefString(event.Color),
		Start:       event.Start,
		End:         event.End,
		AllDay:      event.AllDay,
	}
}

// diffProviderFields returns the mirrored fields that differ between before and after.
func diffProviderFields(before, after Event) ProviderEventPatch {
	var patch ProviderEventPatch
	if before.Title != after.Title {
		title := after.Title
		patch.Title = &title
	}
	if !sameOptional(before.Description, after.Description) {
		description := derefString(after.Description)
		patch.Description = &description
	}
	if !sameOptional(before.Location, after.Location) {
		location := derefString(after.Location)
		patch.Location = &location
	}
	if !sameOptional(before.Color, after.Color) {
		color := derefString(after.Color)
		patch.Color = &color
	}
	// Provider APIs require the full time pair, and its all-day form, when
	// either bound or the all-day flag changes.
	if before.AllDay != after.AllDay || !before.Start.Equal(after.Start) || !before.End.Equal(after.End) {
		start, end, allDay := after.Start, after.End, after.AllDay
		patch.Start = &start
		patch.End = &end
		patch.AllDay = &allDay
	}
	return patch
}
