// Package migrations embeds the SQL schema migrations so the binary can
// bring the database up to date at boot without shipping files alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
