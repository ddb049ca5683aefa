// Package migrations embeds the goose schema migrations of the account
// store, one directory per SQL dialect.
package migrations

import "embed"

const (
	DirSQLite   = "sqlite"
	DirPostgres = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS
