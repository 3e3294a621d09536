package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/persistence/sqlite/migration"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenWithConfig(migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "calendar.db")), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStoreMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Ping(ctx))

	status, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.PendingMigrations)
	assert.Len(t, status.AppliedMigrations, 3)
}

func TestStoreTimestampsSortLexically(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	jst := time.FixedZone("JST", 9*60*60)
	early := time.Date(2025, 1, 1, 8, 0, 0, 0, jst) // 23:00 UTC the previous day
	late := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)

	for id, start := range map[string]time.Time{"early": early, "late": late} {
		require.NoError(t, store.CreateEvent(ctx, persistence.Event{
			ID:        id,
			OwnerID:   "user-1",
			Title:     id,
			Start:     start,
			End:       start.Add(time.Hour),
			CreatedAt: start,
			CreatedBy: "user-1",
			UpdatedAt: start,
			UpdatedBy: "user-1",
		}))
	}

	events, err := store.ListEvents(ctx, persistence.EventFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "early", events[0].ID)
	assert.True(t, events[0].Start.Equal(early))
	assert.Equal(t, time.UTC, events[0].Start.Location())
}

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	assert.NoError(t, mapper.MapError(nil))
	assert.ErrorIs(t, mapper.MapError(errString("UNIQUE constraint failed: events.id")), persistence.ErrDuplicate)
	assert.ErrorIs(t, mapper.MapError(errString("FOREIGN KEY constraint failed")), persistence.ErrForeignKeyViolation)
	assert.ErrorIs(t, mapper.MapError(errString("CHECK constraint failed: role")), persistence.ErrConstraintViolation)
}

func TestRetryHelperRetriesBusyErrors(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})
	attempts := 0
	err := helper.WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errString("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = helper.WithRetry(context.Background(), func() error {
		attempts++
		return errString("syntax error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

type errString string

func (e errString) Error() string { return string(e) }
