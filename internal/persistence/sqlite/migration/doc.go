// Package migration applies the versioned SQLite schema for the calendar store.
//
// Migrations are embedded into the binary and follow the naming convention
// {version}_{description}.sql (e.g. "001_create_events.sql"). Applied versions
// are tracked in the schema_migrations table so every migration runs once.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(Files), NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
