// Package db embeds the SQL migration files so the server binary and the
// test helpers share a single schema source.
package db

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
