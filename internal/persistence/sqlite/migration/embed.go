package migration

import "embed"

// Dir is the directory inside Files holding the migrations.
const Dir = "migrations"

// Files holds the schema migrations shipped with the binary.
//
//go:embed migrations/*.sql
var Files embed.FS
