package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLiteExecutor {
	t.Helper()
	cm := NewConnectionManager(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	db, err := cm.GetConnection()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteExecutor(db)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunMigrations_AppliesEmbeddedSchemaOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	executor := openTestDB(t)
	manager := NewMigrationManager(NewFileScanner(Files), executor, discardLogger())

	require.NoError(t, manager.RunMigrations(ctx))
	require.NoError(t, manager.RunMigrations(ctx))

	status, err := manager.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "003", status.CurrentVersion)
	assert.Zero(t, status.PendingCount)
	assert.Len(t, status.AppliedMigrations, 3)

	_, err = executor.db.ExecContext(ctx, `INSERT INTO activities (id, user_id, type, details, created_at, created_by) VALUES ('a', 'u', 'T', 'd', 'x', 'u')`)
	assert.NoError(t, err)
}

func TestRunMigrations_RollsBackFailedMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	files := fstest.MapFS{
		"sql/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"sql/002_broken.sql": {Data: []byte("CREATE TABLE half (id TEXT);\nINSERT INTO missing VALUES (1);")},
	}
	executor := openTestDB(t)
	manager := NewMigrationManager(NewFileScanner(files), executor, discardLogger())

	err := manager.RunMigrations(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMigrationFailed))

	pending, err := manager.GetPendingMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "002", pending[0].Version)

	var count int
	require.NoError(t, executor.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'`).Scan(&count))
	assert.Zero(t, count)
}

func TestGetPendingMigrations_DetectsEditedMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	executor := openTestDB(t)
	original := fstest.MapFS{"sql/001_t.sql": {Data: []byte("CREATE TABLE t (id TEXT);")}}
	require.NoError(t, NewMigrationManager(NewFileScanner(original), executor, discardLogger()).RunMigrations(ctx))

	edited := fstest.MapFS{"sql/001_t.sql": {Data: []byte("CREATE TABLE t (id TEXT, name TEXT);")}}
	_, err := NewMigrationManager(NewFileScanner(edited), executor, discardLogger()).GetPendingMigrations(ctx)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestConnectionManager_ValidateConfig(t *testing.T) {
	t.Parallel()

	valid := TempFileTestSQLiteConfig("x.db")
	assert.NoError(t, NewConnectionManager(valid).ValidateConfig())

	invalid := valid
	invalid.JournalMode = "SIDEWAYS"
	assert.Error(t, NewConnectionManager(invalid).ValidateConfig())

	invalid = valid
	invalid.DSN = " "
	assert.Error(t, NewConnectionManager(invalid).ValidateConfig())
}

func TestFilePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/a.db", filePath("file:/tmp/a.db?cache=shared"))
	assert.Equal(t, "data/a.db", filePath("data/a.db"))
	assert.Empty(t, filePath(":memory:"))
	assert.Empty(t, filePath("file:x?mode=memory"))
}
