package sqlite

import (
	"context"
	"strings"

	"github.com/example/personal-calendar/internal/persistence"
)

const activityColumns = `id, user_id, type, details, created_at, created_by`

// ActivityRepository implements persistence.ActivityRepository using SQLite.
type ActivityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewActivityRepository creates a new SQLite activity repository.
func NewActivityRepository(pool *ConnectionPool) *ActivityRepository {
	return &ActivityRepository{pool: pool, mapper: NewErrorMapper()}
}

var _ persistence.ActivityRepository = (*ActivityRepository)(nil)

// CreateActivity appends an entry to the activity log.
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	return r.mapper.MapError(insertActivity(ctx, r.pool.DB(), activity))
}

// ListActivities returns the newest entries first.
func (r *ActivityRepository) ListActivities(ctx context.Context, filter persistence.ActivityFilter) ([]persistence.Activity, error) {
	where, args := buildActivityWhere(filter)
	query := `SELECT ` + activityColumns + ` FROM activities` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var activities []persistence.Activity
	for rows.Next() {
		var (
			activity     persistence.Activity
			createdAtStr string
		)
		if err := rows.Scan(&activity.ID, &activity.UserID, &activity.Type, &activity.Details, &createdAtStr, &activity.CreatedBy); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if activity.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return activities, nil
}

// CountActivities returns the number of entries matching filter.
func (r *ActivityRepository) CountActivities(ctx context.Context, filter persistence.ActivityFilter) (int, error) {
	where, args := buildActivityWhere(filter)
	var count int
	if err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`+where, args...).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func buildActivityWhere(filter persistence.ActivityFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func insertActivity(ctx context.Context, q queryer, activity persistence.Activity) error {
	if activity.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.UserID,
		activity.Type,
		activity.Details,
		formatTime(activity.CreatedAt),
		activity.CreatedBy,
	)
	return err
}
