package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/personal-calendar/internal/persistence/sqlite/migration"
)

// Store bundles the SQLite backed repositories sharing one connection pool.
type Store struct {
	*EventRepository
	*AttendeeRepository
	*ActivityRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database at dsn using the production settings.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(dsn), logger)
}

// OpenWithConfig connects to the database described by config.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Store{
		EventRepository:    NewEventRepository(pool),
		AttendeeRepository: NewAttendeeRepository(pool),
		ActivityRepository: NewActivityRepository(pool),
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migration.Files),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Store) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migration.Files),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.GetMigrationStatus(ctx)
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
