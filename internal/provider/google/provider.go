// Package google mirrors events to Google Calendar through the v3 REST API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/example/personal-calendar/internal/application"
)

const (
	defaultCalendarID = "primary"
	defaultTimeout    = 10 * time.Second
	defaultMaxPages   = 10
	pageSize          = 50
	dateLayout        = "2006-01-02"
)

// Config controls how providers are built for each credential.
type Config struct {
	// CalendarID selects the calendar to mirror into. Defaults to "primary".
	CalendarID string
	// TimeZone is the IANA zone sent with timed events. Defaults to UTC.
	TimeZone string
	// Timeout bounds every API call.
	Timeout time.Duration
	// MaxPages caps the number of list pages followed during a sync.
	MaxPages int
	// Endpoint overrides the API base URL.
	Endpoint string
	// HTTPClient is the transport the OAuth2 client wraps.
	HTTPClient *http.Client
}

// Factory builds a Provider for each per-user access token.
type Factory struct {
	config   Config
	location *time.Location
	logger   *slog.Logger
}

// NewFactory validates config and returns a provider factory.
func NewFactory(config Config, logger *slog.Logger) (*Factory, error) {
	if strings.TrimSpace(config.CalendarID) == "" {
		config.CalendarID = defaultCalendarID
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaultMaxPages
	}
	if config.TimeZone == "" {
		config.TimeZone = "UTC"
	}
	location, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load provider time zone %q: %w", config.TimeZone, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{config: config, location: location, logger: logger}, nil
}

// ForCredential implements application.ProviderFactory.
func (f *Factory) ForCredential(ctx context.Context, credential string) (application.CalendarProvider, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, application.ErrProviderCredentialMissing
	}

	base := f.config.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential, TokenType: "Bearer"})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), tokens)

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if f.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.config.Endpoint))
	}
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Provider{
		service:    service,
		calendarID: f.config.CalendarID,
		location:   f.location,
		timeout:    f.config.Timeout,
		maxPages:   f.config.MaxPages,
		logger:     f.logger.With("provider", "google"),
	}, nil
}

// Provider is a Google Calendar bound to one access token.
type Provider struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
	timeout    time.Duration
	maxPages   int
	logger     *slog.Logger
}

// CreateEvent inserts event and returns the id Google assigned to it.
func (p *Provider) CreateEvent(ctx context.Context, event application.ProviderEvent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start, end := p.eventTimes(event.Start, event.End, event.AllDay)
	created, err := p.service.Events.Insert(p.calendarID, &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		ColorId:     ColorID(event.Color),
		Start:       start,
		End:         end,
		Reminders:   &calendar.EventReminders{UseDefault: true},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert google event: %w", err)
	}

	p.logger.DebugContext(ctx, "inserted google event", "provider_event_id", created.Id)
	return created.Id, nil
}

// UpdateEvent patches only the fields present in patch.
func (p *Provider) UpdateEvent(ctx context.Context, providerEventID string, patch application.ProviderEventPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.service.Events.Patch(p.calendarID, providerEventID, p.toPatch(patch)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to patch google event %s: %w", providerEventID, err)
	}
	return nil
}

// DeleteEvent removes the event. An event that is already gone is not an error.
func (p *Provider) DeleteEvent(ctx context.Context, providerEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.service.Events.Delete(p.calendarID, providerEventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("failed to delete google event %s: %w", providerEventID, err)
	}
	return nil
}

// ListEvents returns single (expanded) events between timeMin and timeMax in
// start order, following page tokens up to the configured page cap.
func (p *Provider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]application.RemoteEvent, error) {
	call := p.service.Events.List(p.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(false).
		OrderBy("startTime").
		MaxResults(pageSize)

	var events []application.RemoteEvent
	pageToken := ""
	for page := 0; page < p.maxPages; page++ {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		result, err := p.listPage(ctx, call)
		if err != nil {
			return nil, fmt.Errorf("failed to list google events: %w", err)
		}
		for _, item := range result.Items {
			events = append(events, p.toRemoteEvent(item))
		}
		pageToken = result.NextPageToken
		if pageToken == "" {
			return events, nil
		}
	}

	p.logger.WarnContext(ctx, "google event listing truncated at page cap", "max_pages", p.maxPages, "events", len(events))
	return events, nil
}

func (p *Provider) listPage(ctx context.Context, call *calendar.EventsListCall) (*calendar.Events, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return call.Context(ctx).Do()
}

func (p *Provider) toPatch(patch application.ProviderEventPatch) *calendar.Event {
	event := &calendar.Event{}
	if patch.Title != nil {
		event.Summary = *patch.Title
		event.ForceSendFields = append(event.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		event.Description = *patch.Description
		event.ForceSendFields = append(event.ForceSendFields, "Description")
	}
	if patch.Location != nil {
		event.Location = *patch.Location
		event.ForceSendFields = append(event.ForceSendFields, "Location")
	}
	if patch.Color != nil {
		event.ColorId = ColorID(*patch.Color)
	}
	if patch.Start != nil && patch.End != nil {
		allDay := patch.AllDay != nil && *patch.AllDay
		event.Start, event.End = p.eventTimes(*patch.Start, *patch.End, allDay)
	}
	return event
}

// eventTimes renders the time pair. All-day events use dates with an
// exclusive end, so an end on the start day is pushed to the next day.
func (p *Provider) eventTimes(start, end time.Time, allDay bool) (*calendar.EventDateTime, *calendar.EventDateTime) {
	if allDay {
		startDay := start.In(p.location)
		endDay := end.In(p.location)
		if !dayAfter(endDay, startDay) {
			endDay = startDay.AddDate(0, 0, 1)
		}
		return &calendar.EventDateTime{Date: startDay.Format(dateLayout)},
			&calendar.EventDateTime{Date: endDay.Format(dateLayout)}
	}
	zone := p.location.String()
	return &calendar.EventDateTime{DateTime: start.In(p.location).Format(time.RFC3339), TimeZone: zone},
		&calendar.EventDateTime{DateTime: end.In(p.location).Format(time.RFC3339), TimeZone: zone}
}

func (p *Provider) toRemoteEvent(item *calendar.Event) application.RemoteEvent {
	remote := application.RemoteEvent{
		ProviderID:  item.Id,
		Title:       strings.TrimSpace(item.Summary),
		Description: item.Description,
		Location:    item.Location,
	}
	if item.Start != nil {
		remote.Start = p.parseEventTime(item.Start)
		remote.AllDay = item.Start.DateTime == "" && item.Start.Date != ""
	}
	if item.End != nil {
		remote.End = p.parseEventTime(item.End)
	}
	return remote
}

func (p *Provider) parseEventTime(value *calendar.EventDateTime) *time.Time {
	if value.DateTime != "" {
		t, err := time.Parse(time.RFC3339, value.DateTime)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	}
	if value.Date != "" {
		t, err := time.ParseInLocation(dateLayout, value.Date, p.location)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	}
	return nil
}

func dayAfter(end, start time.Time) bool {
	return end.Format(dateLayout) > start.Format(dateLayout)
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
