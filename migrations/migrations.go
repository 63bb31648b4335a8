// Package migrations embeds the schema migration files so the worker
// binary carries them without a separate deploy step, wired through
// golang-migrate/v4's iofs source.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
