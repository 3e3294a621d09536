package mail

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/application"
)

func sampleInvitation() application.Invitation {
	start := time.Date(2025, 3, 11, 14, 30, 0, 0, time.UTC)
	return application.Invitation{
		EventID:        "evt-1",
		EventTitle:     "Design review",
		OrganizerName:  "Olivia Owner",
		OrganizerEmail: "owner@example.com",
		RecipientEmail: "bob@example.com",
		Start:          start,
		End:            start.Add(time.Hour),
		Location:       "Room 4",
		Description:    "Bring <mockups>",
		RespondToken:   "signed-token",
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	renderer, err := NewRenderer("https://calendar.example.com/", "UTC")
	require.NoError(t, err)
	renderer.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return renderer
}

func TestNewRenderer_RejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewRenderer("calendar.example.com", "UTC")
	assert.Error(t, err)

	_, err = NewRenderer("https://calendar.example.com", "Nowhere/Zone")
	assert.Error(t, err)
}

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	renderer := newTestRenderer(t)
	message, err := renderer.Render(sampleInvitation())
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", message.To)
	assert.Equal(t, "Invitation: Design review", message.Subject)

	assert.Contains(t, message.TextBody, "Organizer: Olivia Owner <owner@example.com>")
	assert.Contains(t, message.TextBody, "When: Tuesday, March 11, 2025 at 14:30 UTC")
	assert.Contains(t, message.TextBody, "Where: Room 4")
	assert.Contains(t, message.TextBody, "Bring <mockups>")
	assert.Contains(t, message.TextBody, "Accept: https://calendar.example.com/invitations/respond?")

	assert.Contains(t, message.HTMLBody, "Design review")
	assert.Contains(t, message.HTMLBody, "Bring &lt;mockups&gt;")
	assert.NotContains(t, message.HTMLBody, "<mockups>")

	require.Len(t, message.Attachments, 1)
	attachment := message.Attachments[0]
	assert.Equal(t, "invite.ics", attachment.Name)
	assert.True(t, strings.HasPrefix(attachment.ContentType, "text/calendar"))

	cal, err := ical.NewDecoder(bytes.NewReader(attachment.Data)).Decode()
	require.NoError(t, err)
	method, err := cal.Props.Text("METHOD")
	require.NoError(t, err)
	assert.Equal(t, "REQUEST", method)
	events := cal.Events()
	require.Len(t, events, 1)
	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Design review", summary)
	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, sampleInvitation().Start.Equal(start))
	require.NotNil(t, events[0].Props.Get(ical.PropAttendee))
}

func TestRenderer_OmitsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	invitation := sampleInvitation()
	invitation.Location = ""
	invitation.Description = ""
	invitation.AllDay = true

	message, err := newTestRenderer(t).Render(invitation)
	require.NoError(t, err)
	assert.NotContains(t, message.TextBody, "Where:")
	assert.NotContains(t, message.HTMLBody, "Where:")
	assert.Contains(t, message.TextBody, "When: Tuesday, March 11, 2025 (all day)")
}

func TestRenderer_RespondURL(t *testing.T) {
	t.Parallel()

	raw := newTestRenderer(t).RespondURL(sampleInvitation(), application.AttendeeStatusDeclined)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "calendar.example.com", parsed.Host)
	assert.Equal(t, "/invitations/respond", parsed.Path)
	query := parsed.Query()
	assert.Equal(t, "evt-1", query.Get("event_id"))
	assert.Equal(t, "bob@example.com", query.Get("email"))
	assert.Equal(t, "signed-token", query.Get("token"))
	assert.Equal(t, "declined", query.Get("status"))
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	t.Parallel()

	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "calendar@example.com", FromName: "Calendar"})
	require.NoError(t, err)

	message, err := newTestRenderer(t).Render(sampleInvitation())
	require.NoError(t, err)

	msg, err := sender.buildMessage(message)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Invitation: Design review")
	assert.Contains(t, raw, "bob@example.com")
	assert.Contains(t, raw, "calendar@example.com")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "text/calendar")
}

func TestNewSMTPSender_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSMTPSender(SMTPConfig{From: "calendar@example.com"})
	assert.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "calendar@example.com"})
	require.NoError(t, err)
	_, err = sender.buildMessage(Message{To: "not an address", Subject: "x", TextBody: "x"})
	assert.Error(t, err)
}

type recordingSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
	release  chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, message Message) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return s.err
}

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveDelivery(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) ObserveQueueDepth(int) {}

func (o *countingObserver) count(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[outcome]
}

func TestDispatcher_DeliversQueuedInvitations(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	observer := &countingObserver{}
	dispatcher := NewDispatcher(newTestRenderer(t), sender, DispatcherConfig{QueueSize: 4, Workers: 2}, nil)
	dispatcher.SetObserver(observer)
	dispatcher.Start()

	require.NoError(t, dispatcher.SendInvitation(context.Background(), sampleInvitation()))
	second := sampleInvitation()
	second.RecipientEmail = "carol@example.com"
	require.NoError(t, dispatcher.SendInvitation(context.Background(), second))

	require.NoError(t, dispatcher.Close(context.Background()))

	recipients := []string{}
	for _, message := range sender.sent() {
		recipients = append(recipients, message.To)
	}
	assert.ElementsMatch(t, []string{"bob@example.com", "carol@example.com"}, recipients)
	assert.Equal(t, 2, observer.count(OutcomeSent))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	observer := &countingObserver{}
	dispatcher := NewDispatcher(newTestRenderer(t), sender, DispatcherConfig{QueueSize: 1, Workers: 1}, nil)
	dispatcher.SetObserver(observer)

	require.NoError(t, dispatcher.SendInvitation(context.Background(), sampleInvitation()))
	err := dispatcher.SendInvitation(context.Background(), sampleInvitation())
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, dispatcher.Depth())
	assert.Equal(t, 1, observer.count(OutcomeDropped))

	dispatcher.Start()
	require.NoError(t, dispatcher.Close(context.Background()))
	assert.Len(t, sender.sent(), 1)
}

func TestDispatcher_SendFailureIsObserved(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{err: errors.New("relay down")}
	observer := &countingObserver{}
	dispatcher := NewDispatcher(newTestRenderer(t), sender, DispatcherConfig{}, nil)
	dispatcher.SetObserver(observer)
	dispatcher.Start()

	require.NoError(t, dispatcher.SendInvitation(context.Background(), sampleInvitation()))
	require.NoError(t, dispatcher.Close(context.Background()))
	assert.Equal(t, 1, observer.count(OutcomeFailed))
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(newTestRenderer(t), &recordingSender{}, DispatcherConfig{}, nil)
	dispatcher.Start()
	require.NoError(t, dispatcher.Close(context.Background()))
	require.NoError(t, dispatcher.Close(context.Background()))

	err := dispatcher.SendInvitation(context.Background(), sampleInvitation())
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{release: make(chan struct{})}
	dispatcher := NewDispatcher(newTestRenderer(t), sender, DispatcherConfig{Workers: 1}, nil)
	dispatcher.Start()
	require.NoError(t, dispatcher.SendInvitation(context.Background(), sampleInvitation()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, dispatcher.Close(ctx), context.DeadlineExceeded)

	close(sender.release)
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewLogSender(nil).Send(context.Background(), Message{To: "bob@example.com"}))
}
