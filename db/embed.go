// Package db provides the embedded schema and the bundled seed catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables. Every
// statement is idempotent so it can run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string

// Catalog is the demo catalog. seed-db loads it into Postgres; the server in
// memory mode and posctl serve it when no catalog file is given.
//
//go:embed seed/catalog.json
var Catalog []byte
