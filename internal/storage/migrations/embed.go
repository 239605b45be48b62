// Package migrations embeds the SQLite schema migrations.
package migrations

import "embed"

// FS holds the numbered *.sql files applied by sqlite.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
