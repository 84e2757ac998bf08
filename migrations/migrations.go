// Package migrations embeds the PostgreSQL schema.
package migrations

import "embed"

// FS holds sql/NNNN_name.up.sql and matching .down.sql files.
//
//go:embed sql/*.sql
var FS embed.FS

const Dir = "sql"
