// Package migrations embeds the SQL schema for every supported driver.
// Files live in one directory per driver name and follow golang-migrate naming.
package migrations

import "embed"

// FS holds sqlite/*.sql and postgres/*.sql.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
