package credvault

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded schema. Postgres files sit under
// data/sql/migrations and sqlite alternatives under its sqlite directory.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
