package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// activityLog appends best-effort audit entries on behalf of the event and sync services.
type activityLog struct {
	repo        ActivityRepository
	idGenerator func() string
	now         func() time.Time
}

func (l activityLog) entry(principal Principal, activityType ActivityType, details string) Activity {
	return Activity{
		ID:        l.idGenerator(),
		UserID:    principal.UserID,
		Type:      activityType,
		Details:   details,
		CreatedAt: l.now(),
		CreatedBy: principal.UserID,
	}
}

// append writes an entry after the triggering operation has succeeded. A
// failed write is logged and never propagated.
func (l activityLog) append(ctx context.Context, logger *slog.Logger, principal Principal, activityType ActivityType, details string) {
	if l.repo == nil {
		return
	}
	activity := l.entry(principal, activityType, details)
	if err := l.repo.CreateActivity(ctx, activity); err != nil {
		logger.WarnContext(ctx, "failed to record activity",
			"activity_type", string(activityType),
			"error", err,
		)
	}
}

// ActivityService exposes the activity feed.
type ActivityService struct {
	activities ActivityRepository
	logger     *slog.Logger
}

// NewActivityService constructs an activity service.
func NewActivityService(activities ActivityRepository) *ActivityService {
	return NewActivityServiceWithLogger(activities, nil)
}

// NewActivityServiceWithLogger constructs an activity service with a specified logger.
func NewActivityServiceWithLogger(activities ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{activities: activities, logger: defaultLogger(logger)}
}

// ListActivities returns the principal's most recent activities, newest first.
func (s *ActivityService) ListActivities(ctx context.Context, params ListActivitiesParams) (activities []Activity, err error) {
	if s == nil {
		err = fmt.Errorf("ActivityService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ActivityService", "ListActivities",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list activities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(activities)).InfoContext(ctx, "activities listed")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	limit := params.Limit
	if limit == 0 {
		limit = defaultActivityLimit
	}
	if limit < 1 || limit > maxActivityLimit {
		err = newValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", maxActivityLimit))
		return
	}

	if s.activities == nil {
		return nil, nil
	}

	activities, err = s.activities.ListActivities(ctx, ActivityQuery{UserID: params.Principal.UserID, Limit: limit})
	if err != nil {
		err = mapRepoError(err)
		return
	}
	return
}
