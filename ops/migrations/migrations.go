// Package migrations embeds the SQL schema and seed files so the
// binaries can run them without a checkout on disk.
package migrations

import "embed"

//go:embed sql seeds
var FS embed.FS

const (
	SQLDir   = "sql"
	SeedsDir = "seeds"
)
