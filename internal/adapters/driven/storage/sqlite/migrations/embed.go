// Package migrations holds the schema scripts for the record store,
// applied in file-name order on open.
package migrations

import "embed"

// FS is the set of *.sql scripts.
//
//go:embed *.sql
var FS embed.FS
