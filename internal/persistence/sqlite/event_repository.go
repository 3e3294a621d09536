package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/personal-calendar/internal/persistence"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const eventColumns = `id, owner_id, title, description, location, category, color, start_time, end_time, all_day,
	provider_event_id, created_at, created_by, updated_at, updated_by`

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper()}
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if event.End.Before(event.Start) {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		event.ID,
		event.OwnerID,
		event.Title,
		nullString(event.Description),
		nullString(event.Location),
		nullString(event.Category),
		nullString(event.Color),
		formatTime(event.Start),
		formatTime(event.End),
		event.AllDay,
		nullString(event.ProviderEventID),
		formatTime(event.CreatedAt),
		event.CreatedBy,
		formatTime(event.UpdatedAt),
		event.UpdatedBy,
	)
	return r.mapper.MapError(err)
}

// UpdateEvent overwrites the mutable columns of an existing event. The owner
// recorded at creation time is never changed.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.End.Before(event.Start) {
		return persistence.ErrConstraintViolation
	}

	const query = `
		UPDATE events
		SET title = ?, description = ?, location = ?, category = ?, color = ?, start_time = ?, end_time = ?,
			all_day = ?, provider_event_id = ?, updated_at = ?, updated_by = ?
		WHERE id = ?
	`
	result, err := r.pool.DB().ExecContext(ctx, query,
		event.Title,
		nullString(event.Description),
		nullString(event.Location),
		nullString(event.Category),
		nullString(event.Color),
		formatTime(event.Start),
		formatTime(event.End),
		event.AllDay,
		nullString(event.ProviderEventID),
		formatTime(event.UpdatedAt),
		event.UpdatedBy,
		event.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// GetEventByProviderID retrieves the event linked to an external provider record.
func (r *EventRepository) GetEventByProviderID(ctx context.Context, providerEventID string) (persistence.Event, error) {
	if providerEventID == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE provider_event_id = ?`, providerEventID)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// ListEvents returns events matching filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	where, args := buildEventWhere(filter)

	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	query := `SELECT ` + eventColumns + ` FROM events` + where +
		fmt.Sprintf(" ORDER BY start_time %s, id %s", order, order)
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

// CountEvents returns the number of events matching filter. Limit and ordering are ignored.
func (r *EventRepository) CountEvents(ctx context.Context, filter persistence.EventFilter) (int, error) {
	where, args := buildEventWhere(filter)
	var count int
	if err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// CategoryCounts groups the owner's categorised events, most used first.
func (r *EventRepository) CategoryCounts(ctx context.Context, ownerID string) ([]persistence.CategoryCount, error) {
	const query = `
		SELECT category, COUNT(*) AS total
		FROM events
		WHERE owner_id = ? AND category IS NOT NULL AND category <> ''
		GROUP BY category
		ORDER BY total DESC, category ASC
	`
	rows, err := r.pool.DB().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var counts []persistence.CategoryCount
	for rows.Next() {
		var c persistence.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, r.mapper.MapError(err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return counts, nil
}

// DeleteEvent removes an event together with its attendees.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

func buildEventWhere(filter persistence.EventFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.StartsFrom != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, formatTime(*filter.StartsFrom))
	}
	if filter.StartsUntil != nil {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, formatTime(*filter.StartsUntil))
	}
	if filter.EndsFrom != nil {
		conditions = append(conditions, "end_time >= ?")
		args = append(args, formatTime(*filter.EndsFrom))
	}
	if filter.EndsUntil != nil {
		conditions = append(conditions, "end_time <= ?")
		args = append(args, formatTime(*filter.EndsUntil))
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		conditions = append(conditions, `(lower(title) LIKE ? ESCAPE '\' OR lower(COALESCE(description, '')) LIKE ? ESCAPE '\' OR lower(COALESCE(location, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                                       persistence.Event
		description, location, category, color      sql.NullString
		providerEventID                             sql.NullString
		startStr, endStr, createdAtStr, updatedAtStr string
	)

	err := row.Scan(
		&event.ID,
		&event.OwnerID,
		&event.Title,
		&description,
		&location,
		&category,
		&color,
		&startStr,
		&endStr,
		&event.AllDay,
		&providerEventID,
		&createdAtStr,
		&event.CreatedBy,
		&updatedAtStr,
		&event.UpdatedBy,
	)
	if err != nil {
		return persistence.Event{}, err
	}

	event.Description = stringPtr(description)
	event.Location = stringPtr(location)
	event.Category = stringPtr(category)
	event.Color = stringPtr(color)
	event.ProviderEventID = stringPtr(providerEventID)

	if event.Start, err = parseTime("start_time", startStr); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime("end_time", endStr); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
