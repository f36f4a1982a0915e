// Package migrations embeds the system_metrics schema for the telemetry
// store. The teacher's equivalent package was go_bindata-generated from
// these same .sql files; we expose them through go:embed and golang-migrate's
// iofs source driver instead, since generating bindata requires a codegen
// step this package doesn't need to run.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
