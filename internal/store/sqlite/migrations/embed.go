package migrations

import "embed"

// FS contains embedded SQLite migrations for network storage.
//
//go:embed *.sql
var FS embed.FS
