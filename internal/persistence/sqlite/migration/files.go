package migration

import "embed"

// Files holds the calendar schema migrations.
//
//go:embed sql/*.sql
var Files embed.FS
