package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/personal-calendar/internal/application"
)

type syncService interface {
	Sync(ctx context.Context, principal application.Principal) (application.SyncResult, error)
}

type activityService interface {
	ListActivities(ctx context.Context, params application.ListActivitiesParams) ([]application.Activity, error)
}

// SyncHandler serves inbound sync and the activity feed.
type SyncHandler struct {
	sync       syncService
	activities activityService
	responder  responder
	logger     *slog.Logger
}

func NewSyncHandler(sync syncService, activities activityService, logger *slog.Logger) *SyncHandler {
	base := defaultLogger(logger)
	return &SyncHandler{sync: sync, activities: activities, responder: newResponder(base), logger: base}
}

func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.sync == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.sync.Sync(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "SyncHandler", "Sync", "processed", result.Processed).
		InfoContext(r.Context(), "sync finished")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, syncResponse{
		Fetched:     result.Fetched,
		Processed:   result.Processed,
		Created:     result.Created,
		Updated:     result.Updated,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
		WindowStart: formatTimestamp(result.WindowStart),
		WindowEnd:   formatTimestamp(result.WindowEnd),
	})
}

func (h *SyncHandler) Activities(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.activities == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"limit": "limit must be a positive integer"},
			})
			return
		}
		limit = n
	}

	principal, _ := PrincipalFromContext(r.Context())
	activities, err := h.activities.ListActivities(r.Context(), application.ListActivitiesParams{
		Principal: principal,
		Limit:     limit,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]activityDTO, 0, len(activities))
	for _, activity := range activities {
		out = append(out, activityDTO{
			ID:        activity.ID,
			UserID:    activity.UserID,
			Type:      string(activity.Type),
			Details:   activity.Details,
			CreatedAt: formatTimestamp(activity.CreatedAt),
			CreatedBy: activity.CreatedBy,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listActivitiesResponse{Activities: out})
}

type syncResponse struct {
	Fetched     int    `json:"fetched"`
	Processed   int    `json:"processed"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

type activityDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
	CreatedBy string `json:"created_by"`
}

type listActivitiesResponse struct {
	Activities []activityDTO `json:"activities"`
}
