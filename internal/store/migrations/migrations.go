// Package migrations embeds the versioned schema migrations for the
// contacts database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
