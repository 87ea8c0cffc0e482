package db

import "embed"

// MigrationFS holds the schema migrations applied by cmd/migrate and by the server at startup
// when MIGRATE_ON_START is set.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
