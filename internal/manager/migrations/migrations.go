// Package migrations embeds the goose SQL migrations for the manager schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
