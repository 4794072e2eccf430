// Package migrations embeds the PostgreSQL schema applied at startup.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files in version order.
//
//go:embed *.sql
var FS embed.FS
