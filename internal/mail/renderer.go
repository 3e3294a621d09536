// Package mail renders event invitations and delivers them over SMTP from a
// bounded background queue.
package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/personal-calendar/internal/application"
)

const (
	calendarContentType = "text/calendar; charset=utf-8; method=REQUEST"
	startLayout         = "Monday, January 2, 2006 at 15:04 MST"
	allDayLayout        = "Monday, January 2, 2006"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To          string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is an in-memory file attached to a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// respondLink is one answer button in the invitation.
type respondLink struct {
	Label string
	URL   string
}

type invitationView struct {
	Title          string
	OrganizerName  string
	OrganizerEmail string
	When           string
	Location       string
	Description    string
	Links          []respondLink
}

var htmlInvitation = htmltemplate.Must(htmltemplate.New("invitation.html").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>You're invited: {{.Title}}</h2>
<p><strong>Organizer:</strong> {{.OrganizerName}} &lt;{{.OrganizerEmail}}&gt;</p>
<p><strong>When:</strong> {{.When}}</p>
{{- if .Location}}
<p><strong>Where:</strong> {{.Location}}</p>
{{- end}}
{{- if .Description}}
<p>{{.Description}}</p>
{{- end}}
<p>{{range $i, $link := .Links}}{{if $i}} | {{end}}<a href="{{$link.URL}}">{{$link.Label}}</a>{{end}}</p>
</body>
</html>
`))

var textInvitation = texttemplate.Must(texttemplate.New("invitation.txt").Parse(`You're invited: {{.Title}}

Organizer: {{.OrganizerName}} <{{.OrganizerEmail}}>
When: {{.When}}
{{- if .Location}}
Where: {{.Location}}
{{- end}}
{{- if .Description}}

{{.Description}}
{{- end}}

Respond:
{{- range .Links}}
  {{.Label}}: {{.URL}}
{{- end}}
`))

// Renderer turns invitations into messages.
type Renderer struct {
	baseURL  *url.URL
	location *time.Location
	now      func() time.Time
}

// NewRenderer returns a renderer whose respond links point at baseURL and
// whose times are shown in the named zone.
func NewRenderer(baseURL, timeZone string) (*Renderer, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid public base url %q", baseURL)
	}
	if timeZone == "" {
		timeZone = "UTC"
	}
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("load mail time zone %q: %w", timeZone, err)
	}
	return &Renderer{baseURL: parsed, location: location, now: time.Now}, nil
}

// Render builds the invitation email with text and HTML bodies and an
// iCalendar REQUEST attachment.
func (r *Renderer) Render(invitation application.Invitation) (Message, error) {
	view := invitationView{
		Title:          invitation.EventTitle,
		OrganizerName:  invitation.OrganizerName,
		OrganizerEmail: invitation.OrganizerEmail,
		When:           r.formatStart(invitation),
		Location:       invitation.Location,
		Description:    invitation.Description,
		Links: []respondLink{
			{Label: "Accept", URL: r.RespondURL(invitation, application.AttendeeStatusAccepted)},
			{Label: "Maybe", URL: r.RespondURL(invitation, application.AttendeeStatusTentative)},
			{Label: "Decline", URL: r.RespondURL(invitation, application.AttendeeStatusDeclined)},
		},
	}

	var text, html bytes.Buffer
	if err := textInvitation.Execute(&text, view); err != nil {
		return Message{}, fmt.Errorf("render text invitation: %w", err)
	}
	if err := htmlInvitation.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render html invitation: %w", err)
	}
	ics, err := r.calendar(invitation)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:       invitation.RecipientEmail,
		Subject:  fmt.Sprintf("Invitation: %s", invitation.EventTitle),
		TextBody: text.String(),
		HTMLBody: html.String(),
		Attachments: []Attachment{{
			Name:        "invite.ics",
			ContentType: calendarContentType,
			Data:        ics,
		}},
	}, nil
}

// RespondURL is the link an invitee follows to answer with status.
func (r *Renderer) RespondURL(invitation application.Invitation, status application.AttendeeStatus) string {
	u := *r.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/invitations/respond"
	query := url.Values{}
	query.Set("event_id", invitation.EventID)
	query.Set("email", invitation.RecipientEmail)
	query.Set("token", invitation.RespondToken)
	query.Set("status", string(status))
	u.RawQuery = query.Encode()
	return u.String()
}

func (r *Renderer) formatStart(invitation application.Invitation) string {
	if invitation.AllDay {
		return invitation.Start.In(r.location).Format(allDayLayout) + " (all day)"
	}
	return invitation.Start.In(r.location).Format(startLayout)
}

func (r *Renderer) calendar(invitation application.Invitation) ([]byte, error) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, invitation.EventID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, r.now().UTC())
	event.Props.SetText(ical.PropSummary, invitation.EventTitle)
	if invitation.AllDay {
		start := invitation.Start.In(r.location)
		end := invitation.End.In(r.location)
		if end.Format("20060102") <= start.Format("20060102") {
			end = start.AddDate(0, 0, 1)
		}
		event.Props.SetDate(ical.PropDateTimeStart, start)
		event.Props.SetDate(ical.PropDateTimeEnd, end)
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, invitation.Start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, invitation.End.UTC())
	}
	if invitation.Location != "" {
		event.Props.SetText(ical.PropLocation, invitation.Location)
	}
	if invitation.Description != "" {
		event.Props.SetText(ical.PropDescription, invitation.Description)
	}

	organizer := ical.NewProp(ical.PropOrganizer)
	organizer.Params.Set("CN", invitation.OrganizerName)
	organizer.SetText("mailto:" + invitation.OrganizerEmail)
	event.Props.Add(organizer)

	attendee := ical.NewProp(ical.PropAttendee)
	attendee.Params.Set("PARTSTAT", "NEEDS-ACTION")
	attendee.Params.Set("RSVP", "TRUE")
	attendee.SetText("mailto:" + invitation.RecipientEmail)
	event.Props.Add(attendee)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//personal-calendar//EN")
	cal.Props.SetText("METHOD", "REQUEST")
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode invitation calendar: %w", err)
	}
	return buf.Bytes(), nil
}
