package assets

import (
	"embed"
	"io/fs"
)

//go:embed countries.json aliases.yaml sql/*.sql
var FS embed.FS

// Countries returns the embedded reference dataset.
func Countries() ([]byte, error) {
	return FS.ReadFile("countries.json")
}

// Aliases returns the embedded alias table.
func Aliases() ([]byte, error) {
	return FS.ReadFile("aliases.yaml")
}

// Migrations returns the embedded sql directory, rooted so that
// entries are named like "001_init.sql".
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
