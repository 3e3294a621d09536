package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/personal-calendar/internal/application"
)

type attendeeService interface {
	ListAttendees(ctx context.Context, principal application.Principal, eventID string) ([]application.Attendee, error)
	AddAttendee(ctx context.Context, params application.AddAttendeeParams) (application.Attendee, error)
	RemoveAttendee(ctx context.Context, params application.RemoveAttendeeParams) (int, error)
	RespondToInvitation(ctx context.Context, params application.RespondInvitationParams) (application.Attendee, error)
}

type AttendeeHandler struct {
	service   attendeeService
	responder responder
	logger    *slog.Logger
}

func NewAttendeeHandler(service attendeeService, logger *slog.Logger) *AttendeeHandler {
	base := defaultLogger(logger)
	return &AttendeeHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AttendeeHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AttendeeHandler", operation, attrs...)
}

func (h *AttendeeHandler) List(w http.ResponseWriter, r *http.Request, eventID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	attendees, err := h.service.ListAttendees(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAttendeesResponse{Attendees: toAttendeeDTOs(attendees)})
}

func (h *AttendeeHandler) Add(w http.ResponseWriter, r *http.Request, eventID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req attendeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Add", "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode attendee request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	attendee, err := h.service.AddAttendee(r.Context(), application.AddAttendeeParams{
		Principal: principal,
		EventID:   eventID,
		Email:     req.Email,
		Role:      application.AttendeeRole(strings.TrimSpace(req.Role)),
		Status:    application.AttendeeStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Add", "event_id", eventID, "attendee_id", attendee.ID).InfoContext(r.Context(), "attendee added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

func (h *AttendeeHandler) Remove(w http.ResponseWriter, r *http.Request, eventID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingEmailFilter)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	removed, err := h.service.RemoveAttendee(r.Context(), application.RemoveAttendeeParams{
		Principal: principal,
		EventID:   eventID,
		Email:     email,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Remove", "event_id", eventID, "removed", removed).InfoContext(r.Context(), "attendee removed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, removeAttendeeResponse{Removed: removed})
}

// Respond records an invitee's answer. GET serves the links embedded in the
// invitation mail; POST accepts a JSON or form body with the same fields.
func (h *AttendeeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req respondRequest
	switch {
	case r.Method == http.MethodGet:
		req = respondRequestFromValues(r.URL.Query().Get)
	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	default:
		if err := r.ParseForm(); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		req = respondRequestFromValues(r.PostForm.Get)
	}

	attendee, err := h.service.RespondToInvitation(r.Context(), application.RespondInvitationParams{
		EventID: strings.TrimSpace(req.EventID),
		Email:   req.Email,
		Token:   strings.TrimSpace(req.Token),
		Status:  application.AttendeeStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

type attendeeRequest struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type respondRequest struct {
	EventID string `json:"event_id"`
	Email   string `json:"email"`
	Token   string `json:"token"`
	Status  string `json:"status"`
}

func respondRequestFromValues(get func(string) string) respondRequest {
	return respondRequest{
		EventID: get("event_id"),
		Email:   get("email"),
		Token:   get("token"),
		Status:  get("status"),
	}
}

type attendeeDTO struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	CreatedBy string `json:"created_by"`
	UpdatedAt string `json:"updated_at"`
}

type attendeeResponse struct {
	Attendee attendeeDTO `json:"attendee"`
}

type listAttendeesResponse struct {
	Attendees []attendeeDTO `json:"attendees"`
}

type removeAttendeeResponse struct {
	Removed int `json:"removed"`
}

func toAttendeeDTO(attendee application.Attendee) attendeeDTO {
	return attendeeDTO{
		ID:        attendee.ID,
		EventID:   attendee.EventID,
		Email:     attendee.Email,
		Role:      string(attendee.Role),
		Status:    string(attendee.Status),
		CreatedAt: formatTimestamp(attendee.CreatedAt),
		CreatedBy: attendee.CreatedBy,
		UpdatedAt: formatTimestamp(attendee.UpdatedAt),
	}
}

func toAttendeeDTOs(attendees []application.Attendee) []attendeeDTO {
	out := make([]attendeeDTO, 0, len(attendees))
	for _, attendee := range attendees {
		out = append(out, toAttendeeDTO(attendee))
	}
	return out
}
