package migrate

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

//go:embed seeds/*.sql
var seedFiles embed.FS

// Migrations returns the bundled schema migrations.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "sql")
	return sub
}

// Seeds returns the bundled development seed files.
func Seeds() fs.FS {
	sub, _ := fs.Sub(seedFiles, "seeds")
	return sub
}
