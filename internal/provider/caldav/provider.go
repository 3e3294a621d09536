// Package caldav mirrors events to a CalDAV calendar collection.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/example/personal-calendar/internal/application"
)

const (
	defaultTimeout = 10 * time.Second
	productID      = "-//personal-calendar//EN"
	propColor      = "COLOR"
)

// Config describes the CalDAV server and the collection events are written to.
type Config struct {
	// Endpoint is the server root, e.g. https://caldav.example.com/.
	Endpoint string
	// CalendarPath is the collection path, e.g. /calendars/me/default/.
	CalendarPath string
	// TimeZone is used to interpret floating and all-day values.
	TimeZone string
	Timeout  time.Duration
	// HTTPClient is the transport the bearer credential is added to.
	HTTPClient *http.Client
}

// bearerTransport adds the per-user credential to every request.
type bearerTransport struct {
	token     string
	transport http.RoundTripper
}

// RoundTrip adds the Authorization and User-Agent headers.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("User-Agent", "personal-calendar/1.0")
	return t.transport.RoundTrip(req)
}

// Factory builds a Provider for each per-user credential.
type Factory struct {
	config   Config
	location *time.Location
	logger   *slog.Logger
	newUID   func() string
}

// NewFactory validates config and returns a provider factory.
func NewFactory(config Config, logger *slog.Logger) (*Factory, error) {
	if strings.TrimSpace(config.Endpoint) == "" {
		return nil, fmt.Errorf("caldav endpoint is required")
	}
	if strings.TrimSpace(config.CalendarPath) == "" {
		return nil, fmt.Errorf("caldav calendar path is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
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
	return &Factory{config: config, location: location, logger: logger, newUID: uuid.NewString}, nil
}

// ForCredential implements application.ProviderFactory.
func (f *Factory) ForCredential(_ context.Context, credential string) (application.CalendarProvider, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, application.ErrProviderCredentialMissing
	}

	base := http.DefaultTransport
	if f.config.HTTPClient != nil && f.config.HTTPClient.Transport != nil {
		base = f.config.HTTPClient.Transport
	}
	httpClient := &http.Client{Transport: &bearerTransport{token: credential, transport: base}}

	client, err := caldav.NewClient(httpClient, f.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	return &Provider{
		client:       client,
		calendarPath: f.config.CalendarPath,
		location:     f.location,
		timeout:      f.config.Timeout,
		newUID:       f.newUID,
		logger:       f.logger.With("provider", "caldav"),
	}, nil
}

// Provider is a CalDAV collection bound to one credential. Provider event
// ids are the VEVENT UIDs; objects are stored as <uid>.ics.
type Provider struct {
	client       *caldav.Client
	calendarPath string
	location     *time.Location
	timeout      time.Duration
	newUID       func() string
	logger       *slog.Logger
}

// CreateEvent stores a new calendar object and returns its UID.
func (p *Provider) CreateEvent(ctx context.Context, event application.ProviderEvent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	uid := p.newUID()
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	vevent.Props.SetText(ical.PropSummary, event.Title)
	setOptionalText(vevent.Component, ical.PropDescription, event.Description)
	setOptionalText(vevent.Component, ical.PropLocation, event.Location)
	setOptionalText(vevent.Component, propColor, event.Color)
	p.setTimes(vevent.Component, event.Start, event.End, event.AllDay)

	if _, err := p.client.PutCalendarObject(ctx, p.objectPath(uid), wrap(vevent.Component)); err != nil {
		return "", fmt.Errorf("failed to put caldav event: %w", err)
	}
	p.logger.DebugContext(ctx, "stored caldav event", "provider_event_id", uid)
	return uid, nil
}

// UpdateEvent rewrites the stored object with the patched fields applied.
func (p *Provider) UpdateEvent(ctx context.Context, providerEventID string, patch application.ProviderEventPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	objectPath := p.objectPath(providerEventID)
	object, err := p.client.GetCalendarObject(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("failed to get caldav event %s: %w", providerEventID, err)
	}
	events := object.Data.Events()
	if len(events) == 0 {
		return fmt.Errorf("caldav object %s holds no event", providerEventID)
	}
	vevent := events[0].Component

	if patch.Title != nil {
		vevent.Props.SetText(ical.PropSummary, *patch.Title)
	}
	if patch.Description != nil {
		setOptionalText(vevent, ical.PropDescription, *patch.Description)
	}
	if patch.Location != nil {
		setOptionalText(vevent, ical.PropLocation, *patch.Location)
	}
	if patch.Color != nil {
		setOptionalText(vevent, propColor, *patch.Color)
	}
	if patch.Start != nil && patch.End != nil {
		p.setTimes(vevent, *patch.Start, *patch.End, patch.AllDay != nil && *patch.AllDay)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if _, err := p.client.PutCalendarObject(ctx, objectPath, object.Data); err != nil {
		return fmt.Errorf("failed to put caldav event %s: %w", providerEventID, err)
	}
	return nil
}

// DeleteEvent removes the calendar object.
func (p *Provider) DeleteEvent(ctx context.Context, providerEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.RemoveAll(ctx, p.objectPath(providerEventID)); err != nil {
		return fmt.Errorf("failed to delete caldav event %s: %w", providerEventID, err)
	}
	return nil
}

// ListEvents runs a time-range calendar query over the collection.
func (p *Provider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]application.RemoteEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: timeMin.UTC(),
				End:   timeMax.UTC(),
			}},
		},
	}
	objects, err := p.client.QueryCalendar(ctx, p.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query caldav events: %w", err)
	}

	var events []application.RemoteEvent
	for _, object := range objects {
		if object.Data == nil {
			continue
		}
		for _, vevent := range object.Data.Events() {
			events = append(events, p.toRemoteEvent(vevent))
		}
	}
	return events, nil
}

func (p *Provider) objectPath(uid string) string {
	return path.Join(p.calendarPath, uid+".ics")
}

func (p *Provider) setTimes(vevent *ical.Component, start, end time.Time, allDay bool) {
	if allDay {
		startDay := start.In(p.location)
		endDay := end.In(p.location)
		if !endDay.After(startDay) || endDay.Format("20060102") == startDay.Format("20060102") {
			endDay = startDay.AddDate(0, 0, 1)
		}
		vevent.Props.SetDate(ical.PropDateTimeStart, startDay)
		vevent.Props.SetDate(ical.PropDateTimeEnd, endDay)
		return
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
}

func (p *Provider) toRemoteEvent(vevent ical.Event) application.RemoteEvent {
	remote := application.RemoteEvent{
		ProviderID:  propText(vevent.Component, ical.PropUID),
		Title:       strings.TrimSpace(propText(vevent.Component, ical.PropSummary)),
		Description: propText(vevent.Component, ical.PropDescription),
		Location:    propText(vevent.Component, ical.PropLocation),
	}
	if start, err := vevent.DateTimeStart(p.location); err == nil && !start.IsZero() {
		start = start.UTC()
		remote.Start = &start
	}
	if end, err := vevent.DateTimeEnd(p.location); err == nil && !end.IsZero() {
		end = end.UTC()
		remote.End = &end
	}
	if prop := vevent.Props.Get(ical.PropDateTimeStart); prop != nil {
		remote.AllDay = prop.Params.Get("VALUE") == "DATE"
	}
	return remote
}

func wrap(vevent *ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, vevent)
	return cal
}

func setOptionalText(component *ical.Component, name, value string) {
	if strings.TrimSpace(value) == "" {
		component.Props.Del(name)
		return
	}
	component.Props.SetText(name, value)
}

func propText(component *ical.Component, name string) string {
	value, err := component.Props.Text(name)
	if err != nil {
		return ""
	}
	return value
}
