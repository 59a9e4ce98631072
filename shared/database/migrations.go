package database

import "embed"

// MigrationsFS holds the schema migrations, read from MigrationsDir.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

const MigrationsDir = "migrations"
