// Package migrations embeds the SQL schema of the DRE service so binaries
// can migrate without shipping the directory alongside them.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file of this directory.
//
//go:embed *.sql
var FS embed.FS
