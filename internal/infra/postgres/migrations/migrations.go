// Package migrations holds the Postgres schema, applied with bun's migrator.
package migrations

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations registers one migration per file, named after the file.
var Migrations = migrate.NewMigrations()
