// Package migrations embeds the Postgres schema migrations for the directory store.
package migrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
