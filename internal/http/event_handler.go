package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/personal-calendar/internal/application"
)

type eventService interface {
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
	GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.Event, error)
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.EventResult, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.EventResult, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) (application.ProviderSync, error)
	SearchEvents(ctx context.Context, params application.SearchEventsParams) ([]application.Event, error)
	UpcomingEvents(ctx context.Context, principal application.Principal) ([]application.Event, error)
	Categories(ctx context.Context, principal application.Principal) ([]application.CategoryCount, error)
	Stats(ctx context.Context, principal application.Principal) (application.Stats, error)
}

type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	vErr := &application.ValidationError{}
	start := parseTimeField(query.Get("start"), "start", vErr)
	end := parseTimeField(query.Get("end"), "end", vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	events, err := h.service.ListEvents(r.Context(), application.ListEventsParams{
		Principal: principal,
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, vErr := req.toInput()
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "event_id", result.Event.ID, "provider_sync", string(result.ProviderSync.Status)).
		InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventResponse(result))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request, eventID string) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request, eventID string) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	patch, vErr := req.toPatch()
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Patch:     patch,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "event_id", eventID, "provider_sync", string(result.ProviderSync.Status)).
		InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventResponse(result))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request, eventID string) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sync, err := h.service.DeleteEvent(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "event_id", eventID, "provider_sync", string(sync.Status)).
		InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, deleteEventResponse{
		Deleted:      true,
		ProviderSync: toProviderSyncDTO(sync),
	})
}

func (h *EventHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	events, err := h.service.SearchEvents(r.Context(), application.SearchEventsParams{
		Principal: principal,
		Query:     r.URL.Query().Get("q"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	events, err := h.service.UpcomingEvents(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	categories, err := h.service.Categories(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, categoriesResponse{Categories: toCategoryDTOs(categories)})
}

func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statsResponse{
		TotalEvents:          stats.TotalEvents,
		UpcomingEvents:       stats.UpcomingEvents,
		CompletedEvents:      stats.CompletedEvents,
		RecentActivities:     stats.RecentActivities,
		CategoryDistribution: toCategoryDTOs(stats.CategoryDistribution),
		GeneratedAt:          formatTimestamp(stats.GeneratedAt),
	})
}

type eventRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Category    *string `json:"category"`
	Color       *string `json:"color"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	AllDay      bool    `json:"all_day"`
}

func (r eventRequest) toInput() (application.EventInput, *application.ValidationError) {
	vErr := &application.ValidationError{}
	input := application.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Category:    r.Category,
		Color:       r.Color,
		AllDay:      r.AllDay,
	}
	if ts := parseTimeField(r.Start, "start", vErr); ts != nil {
		input.Start = *ts
	}
	if ts := parseTimeField(r.End, "end", vErr); ts != nil {
		input.End = *ts
	}
	return input, vErr
}

// eventPatchRequest distinguishes absent keys (nil) from cleared values ("").
type eventPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Category    *string `json:"category"`
	Color       *string `json:"color"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	AllDay      *bool   `json:"all_day"`
}

func (r eventPatchRequest) toPatch() (application.EventPatch, *application.ValidationError) {
	vErr := &application.ValidationError{}
	patch := application.EventPatch{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Category:    r.Category,
		Color:       r.Color,
		AllDay:      r.AllDay,
	}
	if r.Start != nil {
		patch.Start = parseTimeField(*r.Start, "start", vErr)
	}
	if r.End != nil {
		patch.End = parseTimeField(*r.End, "end", vErr)
	}
	return patch, vErr
}

type eventDTO struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Title           string  `json:"title"`
	Description     *string `json:"description,omitempty"`
	Location        *string `json:"location,omitempty"`
	Category        *string `json:"category,omitempty"`
	Color           *string `json:"color,omitempty"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	AllDay          bool    `json:"all_day"`
	ProviderEventID *string `json:"provider_event_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
	CreatedBy       string  `json:"created_by"`
	UpdatedAt       string  `json:"updated_at"`
	UpdatedBy       string  `json:"updated_by"`
}

type providerSyncDTO struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type eventResponse struct {
	Event        eventDTO         `json:"event"`
	ProviderSync *providerSyncDTO `json:"provider_sync,omitempty"`
}

type deleteEventResponse struct {
	Deleted      bool             `json:"deleted"`
	ProviderSync *providerSyncDTO `json:"provider_sync"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type categoryDTO struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type categoriesResponse struct {
	Categories []categoryDTO `json:"categories"`
}

type statsResponse struct {
	TotalEvents          int           `json:"total_events"`
	UpcomingEvents       int           `json:"upcoming_events"`
	CompletedEvents      int           `json:"completed_events"`
	RecentActivities     int           `json:"recent_activities"`
	CategoryDistribution []categoryDTO `json:"category_distribution"`
	GeneratedAt          string        `json:"generated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:              event.ID,
		OwnerID:         event.OwnerID,
		Title:           event.Title,
		Description:     event.Description,
		Location:        event.Location,
		Category:        event.Category,
		Color:           event.Color,
		Start:           formatTimestamp(event.Start),
		End:             formatTimestamp(event.End),
		AllDay:          event.AllDay,
		ProviderEventID: event.ProviderEventID,
		CreatedAt:       formatTimestamp(event.CreatedAt),
		CreatedBy:       event.CreatedBy,
		UpdatedAt:       formatTimestamp(event.UpdatedAt),
		UpdatedBy:       event.UpdatedBy,
	}
}

// toEventDTOs never returns nil so empty lists encode as [].
func toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

func toEventResponse(result application.EventResult) eventResponse {
	return eventResponse{Event: toEventDTO(result.Event), ProviderSync: toProviderSyncDTO(result.ProviderSync)}
}

func toProviderSyncDTO(sync application.ProviderSync) *providerSyncDTO {
	if sync.Status == "" {
		return nil
	}
	return &providerSyncDTO{Status: string(sync.Status), Reason: sync.Reason}
}

func toCategoryDTOs(categories []application.CategoryCount) []categoryDTO {
	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryDTO{Category: c.Category, Count: c.Count})
	}
	return out
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp accepts RFC 3339 timestamps and bare dates, which are read
// as UTC midnight.
func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseTimeField(value, field string, vErr *application.ValidationError) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	ts, ok := parseTimestamp(value)
	if !ok {
		addFieldError(vErr, field, field+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
		return nil
	}
	return &ts
}

func addFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
	}
	if _, exists := vErr.FieldErrors[field]; !exists {
		vErr.FieldErrors[field] = message
	}
}
