// Package db ships the SQL migrations with the binaries.
package db

import "embed"

// Migrations holds the goose migration files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that goose reads from.
const MigrationsDir = "migrations"
