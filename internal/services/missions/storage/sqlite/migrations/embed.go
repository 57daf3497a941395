package migrations

import "embed"

// FS contains embedded SQLite migrations for missions storage.
//
//go:embed *.sql
var FS embed.FS
