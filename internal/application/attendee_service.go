package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// AttendeeService manages event attendee lists and invitation responses.
type AttendeeService struct {
	events      EventRepository
	attendees   AttendeeRepository
	invitations InvitationSender
	tokens      InvitationTokens
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAttendeeService constructs an attendee service with the provided dependencies.
func NewAttendeeService(events EventRepository, attendees AttendeeRepository, invitations InvitationSender, tokens InvitationTokens, idGenerator func() string, now func() time.Time) *AttendeeService {
	return NewAttendeeServiceWithLogger(events, attendees, invitations, tokens, idGenerator, now, nil)
}

// NewAttendeeServiceWithLogger constructs an attendee service with a specified logger.
func NewAttendeeServiceWithLogger(events EventRepository, attendees AttendeeRepository, invitations InvitationSender, tokens InvitationTokens, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AttendeeService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AttendeeService{
		events:      events,
		attendees:   attendees,
		invitations: invitations,
		tokens:      tokens,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AttendeeService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendeeService", operation, attrs...)
}

// ListAttendees returns the attendees of an event visible to the principal,
// oldest first.
func (s *AttendeeService) ListAttendees(ctx context.Context, principal Principal, eventID string) (attendees []Attendee, err error) {
	if s == nil {
		err = fmt.Errorf("AttendeeService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListAttendees", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list attendees", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(attendees)).InfoContext(ctx, "attendees listed")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if _, err = authorizeEvent(ctx, s.events, s.attendees, eventID, principal, ""); err != nil {
		return
	}

	var raw []Attendee
	raw, err = s.attendees.ListAttendees(ctx, eventID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	attendees = make([]Attendee, len(raw))
	copy(attendees, raw)
	sort.SliceStable(attendees, func(i, j int) bool {
		return attendees[i].CreatedAt.Before(attendees[j].CreatedAt)
	})
	return
}

// AddAttendee invites email to the event. The attendee row and its activity
// record are committed together; the invitation email is handed off afterwards
// and its failure is only logged.
func (s *AttendeeService) AddAttendee(ctx context.Context, params AddAttendeeParams) (attendee Attendee, err error) {
	if s == nil {
		err = fmt.Errorf("AttendeeService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AddAttendee",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add attendee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("attendee_id", attendee.ID).InfoContext(ctx, "attendee added")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	var event Event
	event, err = authorizeEvent(ctx, s.events, s.attendees, params.EventID, params.Principal, AttendeeRoleOwner)
	if err != nil {
		return
	}

	vErr := &ValidationError{}
	email := normalizeEmail(params.Email)
	if email == "" {
		vErr.add("email", "a valid email address is required")
	}
	role := params.Role
	if role == "" {
		role = AttendeeRoleAttendee
	}
	if !role.Valid() {
		vErr.add("role", "role must be one of owner, attendee, guest")
	}
	status := params.Status
	if status == "" {
		status = AttendeeStatusPending
	}
	if !status.Valid() {
		vErr.add("status", "status must be one of pending, accepted, declined, tentative")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	attendee = Attendee{
		ID:        s.idGenerator(),
		EventID:   event.ID,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: now,
		CreatedBy: params.Principal.UserID,
		UpdatedAt: now,
	}
	activity := Activity{
		ID:        s.idGenerator(),
		UserID:    params.Principal.UserID,
		Type:      ActivityAddAttendee,
		Details:   fmt.Sprintf("Added attendee %s to event: %s", email, event.Title),
		CreatedAt: now,
		CreatedBy: params.Principal.UserID,
	}

	attendee, err = s.attendees.AddAttendee(ctx, attendee, activity)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.sendInvitation(ctx, logger, params.Principal, event, attendee)
	return
}

// RemoveAttendee removes every attendee row matching email. Removing an
// absent attendee succeeds and reports zero rows.
func (s *AttendeeService) RemoveAttendee(ctx context.Context, params RemoveAttendeeParams) (removed int, err error) {
	if s == nil {
		err = fmt.Errorf("AttendeeService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RemoveAttendee",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to remove attendee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "attendee removed")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	var event Event
	event, err = authorizeEvent(ctx, s.events, s.attendees, params.EventID, params.Principal, AttendeeRoleOwner)
	if err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	if email == "" {
		err = newValidationError("email", "a valid email address is required")
		return
	}

	now := s.now()
	activity := Activity{
		ID:        s.idGenerator(),
		UserID:    params.Principal.UserID,
		Type:      ActivityRemoveAttendee,
		Details:   fmt.Sprintf("Removed attendee %s from event: %s", email, event.Title),
		CreatedAt: now,
		CreatedBy: params.Principal.UserID,
	}

	removed, err = s.attendees.RemoveAttendees(ctx, event.ID, email, activity)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

// RespondToInvitation records an invitee's answer. The token binds the
// response to the event and recipient the invitation was issued for.
func (s *AttendeeService) RespondToInvitation(ctx context.Context, params RespondInvitationParams) (attendee Attendee, err error) {
	if s == nil {
		err = fmt.Errorf("AttendeeService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RespondToInvitation", "event_id", params.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record invitation response", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("attendee_id", attendee.ID, "status", string(attendee.Status)).InfoContext(ctx, "invitation response recorded")
	}()

	email := normalizeEmail(params.Email)
	if s.tokens == nil || email == "" || params.EventID == "" || !s.tokens.VerifyInvitation(params.EventID, email, params.Token) {
		err = ErrUnauthorized
		return
	}

	switch params.Status {
	case AttendeeStatusAccepted, AttendeeStatusDeclined, AttendeeStatusTentative:
	default:
		err = newValidationError("status", "status must be one of accepted, declined, tentative")
		return
	}

	var event Event
	event, err = s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	var rows []Attendee
	rows, err = s.attendees.FindAttendees(ctx, event.ID, email)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if len(rows) == 0 {
		err = ErrNotFound
		return
	}

	now := s.now()
	activity := Activity{
		ID:        s.idGenerator(),
		UserID:    event.OwnerID,
		Type:      ActivityRespondInvitation,
		Details:   fmt.Sprintf("%s %s invitation to event: %s", email, params.Status, event.Title),
		CreatedAt: now,
		CreatedBy: email,
	}
	if err = s.attendees.UpdateAttendeeStatus(ctx, event.ID, email, params.Status, now, activity); err != nil {
		err = mapRepoError(err)
		return
	}

	attendee = rows[0]
	attendee.Status = params.Status
	attendee.UpdatedAt = now
	return
}

func (s *AttendeeService) sendInvitation(ctx context.Context, logger *slog.Logger, organizer Principal, event Event, attendee Attendee) {
	if s.invitations == nil {
		return
	}

	organizerName := organizer.Name
	if organizerName == "" {
		organizerName = organizer.Email
	}
	invitation := Invitation{
		EventID:        event.ID,
		EventTitle:     event.Title,
		OrganizerName:  organizerName,
		OrganizerEmail: organizer.Email,
		RecipientEmail: attendee.Email,
		Start:          event.Start,
		End:            event.End,
		AllDay:         event.AllDay,
		Location:       derefString(event.Location),
		Description:    derefString(event.Description),
	}
	if s.tokens != nil {
		invitation.RespondToken = s.tokens.SignInvitation(event.ID, attendee.Email)
	}

	if err := s.invitations.SendInvitation(ctx, invitation); err != nil {
		logger.WarnContext(ctx, "failed to dispatch invitation",
			"attendee_id", attendee.ID,
			"error", err,
		)
	}
}
