package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/persistence/memory"
	"github.com/example/personal-calendar/internal/persistence/sqlite"
	"github.com/example/personal-calendar/internal/persistence/sqlite/migration"
)

// StoreHarness exposes the repository interfaces of one backing store.
type StoreHarness struct {
	Name       string
	Events     persistence.EventRepository
	Attendees  persistence.AttendeeRepository
	Activities persistence.ActivityRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated SQLite database in a temporary directory.
// Callers may optionally invoke Close, but the helper also registers a
// cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "calendar.db")
	store, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &StoreHarness{
		Name:       "sqlite",
		Events:     store,
		Attendees:  store,
		Activities: store,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// NewMemoryHarness returns a harness backed by the in-memory store.
func NewMemoryHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	store := memory.New()
	return &StoreHarness{
		Name:       "memory",
		Events:     store,
		Attendees:  store,
		Activities: store,
	}
}

// AllHarnesses returns one harness per store implementation so repository
// contract tests can run against each of them.
func AllHarnesses(tb testing.TB) []*StoreHarness {
	tb.Helper()
	return []*StoreHarness{NewSQLiteHarness(tb), NewMemoryHarness(tb)}
}
