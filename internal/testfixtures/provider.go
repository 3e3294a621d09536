package testfixtures

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/personal-calendar/internal/application"
)

// ErrProviderDown is returned by a FakeProvider whose Fail flag is set.
var ErrProviderDown = errors.New("fake provider unavailable")

// FakeProvider is an in-memory remote calendar.
type FakeProvider struct {
	mu      sync.Mutex
	events  map[string]application.RemoteEvent
	ids     *Sequence
	fail    bool
	calls   []string
	windows [][2]time.Time
}

// NewFakeProvider returns an empty remote calendar.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		events: make(map[string]application.RemoteEvent),
		ids:    NewSequence("remote"),
	}
}

// Factory returns a ProviderFactory that hands out p for token and rejects
// any other credential.
func (p *FakeProvider) Factory(token string) application.ProviderFactory {
	return application.ProviderFactoryFunc(func(ctx context.Context, credential string) (application.CalendarProvider, error) {
		if credential != token {
			return nil, fmt.Errorf("unknown credential %q", credential)
		}
		return p, nil
	})
}

// SetFailing makes every subsequent call return ErrProviderDown.
func (p *FakeProvider) SetFailing(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

// Put stores a remote event directly, as if created in the provider's UI.
func (p *FakeProvider) Put(event application.RemoteEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[event.ProviderID] = event
}

// Remote returns the remote event with id.
func (p *FakeProvider) Remote(id string) (application.RemoteEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	event, ok := p.events[id]
	return event, ok
}

// Calls lists the operations received, in order.
func (p *FakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Windows lists the ranges passed to ListEvents.
func (p *FakeProvider) Windows() [][2]time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]time.Time(nil), p.windows...)
}

func (p *FakeProvider) record(call string) error {
	p.calls = append(p.calls, call)
	if p.fail {
		return ErrProviderDown
	}
	return nil
}

// CreateEvent implements application.CalendarProvider.
func (p *FakeProvider) CreateEvent(ctx context.Context, event application.ProviderEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("create"); err != nil {
		return "", err
	}
	id := p.ids.Next()
	start, end := event.Start, event.End
	p.events[id] = application.RemoteEvent{
		ProviderID:  id,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &start,
		End:         &end,
		AllDay:      event.AllDay,
	}
	return id, nil
}

// UpdateEvent implements application.CalendarProvider.
func (p *FakeProvider) UpdateEvent(ctx context.Context, providerEventID string, patch application.ProviderEventPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("update"); err != nil {
		return err
	}
	event, ok := p.events[providerEventID]
	if !ok {
		return fmt.Errorf("remote event %s not found", providerEventID)
	}
	if patch.Title != nil {
		event.Title = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Location != nil {
		event.Location = *patch.Location
	}
	if patch.Start != nil {
		start := *patch.Start
		event.Start = &start
	}
	if patch.End != nil {
		end := *patch.End
		event.End = &end
	}
	p.events[providerEventID] = event
	return nil
}

// DeleteEvent implements application.CalendarProvider.
func (p *FakeProvider) DeleteEvent(ctx context.Context, providerEventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("delete"); err != nil {
		return err
	}
	delete(p.events, providerEventID)
	return nil
}

// ListEvents implements application.CalendarProvider. Events without a start
// are always returned.
func (p *FakeProvider) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]application.RemoteEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("list"); err != nil {
		return nil, err
	}
	p.windows = append(p.windows, [2]time.Time{timeMin, timeMax})

	var events []application.RemoteEvent
	for _, event := range p.events {
		if event.Start != nil && (event.Start.Before(timeMin) || !event.Start.Before(timeMax)) {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ProviderID < events[j].ProviderID })
	return events, nil
}
