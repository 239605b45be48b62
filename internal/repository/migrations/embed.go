// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import "embed"

// FS holds the numbered *.sql files applied by repository.Migrate.
//
//go:embed *.sql
var FS embed.FS
