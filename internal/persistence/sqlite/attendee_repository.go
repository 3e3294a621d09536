package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/personal-calendar/internal/persistence"
)

const attendeeColumns = `id, event_id, email, role, status, created_at, created_by, updated_at`

// AttendeeRepository implements persistence.AttendeeRepository using SQLite.
// Every mutation is committed together with the activity that records it.
type AttendeeRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewAttendeeRepository creates a new SQLite attendee repository.
func NewAttendeeRepository(pool *ConnectionPool) *AttendeeRepository {
	return &AttendeeRepository{pool: pool, mapper: NewErrorMapper()}
}

var _ persistence.AttendeeRepository = (*AttendeeRepository)(nil)

// ListAttendees returns the attendees of an event in insertion order.
func (r *AttendeeRepository) ListAttendees(ctx context.Context, eventID string) ([]persistence.Attendee, error) {
	return r.queryAttendees(ctx, `SELECT `+attendeeColumns+` FROM event_attendees WHERE event_id = ? ORDER BY created_at ASC, id ASC`, eventID)
}

// FindAttendees returns the rows matching (eventID, email).
func (r *AttendeeRepository) FindAttendees(ctx context.Context, eventID, email string) ([]persistence.Attendee, error) {
	return r.queryAttendees(ctx, `SELECT `+attendeeColumns+` FROM event_attendees WHERE event_id = ? AND email = ? ORDER BY id ASC`, eventID, email)
}

// CreateAttendeeWithActivity inserts attendee and activity in one transaction.
func (r *AttendeeRepository) CreateAttendeeWithActivity(ctx context.Context, attendee persistence.Attendee, activity persistence.Activity) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO event_attendees (` + attendeeColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query,
			attendee.ID,
			attendee.EventID,
			attendee.Email,
			attendee.Role,
			attendee.Status,
			formatTime(attendee.CreatedAt),
			attendee.CreatedBy,
			formatTime(attendee.UpdatedAt),
		); err != nil {
			return r.mapper.MapError(err)
		}
		return r.mapper.MapError(insertActivity(ctx, tx, activity))
	})
}

// DeleteAttendeesWithActivity removes every row matching (eventID, email) and
// records activity in the same transaction. The activity is written even when
// no rows matched.
func (r *AttendeeRepository) DeleteAttendeesWithActivity(ctx context.Context, eventID, email string, activity persistence.Activity) (int, error) {
	var removed int
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = ? AND email = ?`, eventID, email)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(affected)
		return r.mapper.MapError(insertActivity(ctx, tx, activity))
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// UpdateAttendeeStatusWithActivity changes the response status of the
// attendee identified by (eventID, email) and records activity atomically.
func (r *AttendeeRepository) UpdateAttendeeStatusWithActivity(ctx context.Context, eventID, email, status string, updatedAt time.Time, activity persistence.Activity) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE event_attendees SET status = ?, updated_at = ? WHERE event_id = ? AND email = ?`,
			status, formatTime(updatedAt), eventID, email,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		return r.mapper.MapError(insertActivity(ctx, tx, activity))
	})
}

func (r *AttendeeRepository) queryAttendees(ctx context.Context, query string, args ...any) ([]persistence.Attendee, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var attendees []persistence.Attendee
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		attendees = append(attendees, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return attendees, nil
}

func scanAttendee(row rowScanner) (persistence.Attendee, error) {
	var (
		attendee                   persistence.Attendee
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&attendee.ID,
		&attendee.EventID,
		&attendee.Email,
		&attendee.Role,
		&attendee.Status,
		&createdAtStr,
		&attendee.CreatedBy,
		&updatedAtStr,
	); err != nil {
		return persistence.Attendee{}, err
	}

	var err error
	if attendee.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Attendee{}, err
	}
	if attendee.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Attendee{}, err
	}
	return attendee, nil
}
