// Package migrations embeds the upload queue schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
