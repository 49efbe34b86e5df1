// Package migrations carries the fleetd schema migrations, compiled
// into the binary so deployments never depend on loose .sql files.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// Files returns the embedded migration files for database.Migrate.
func Files() fs.FS {
	return files
}
