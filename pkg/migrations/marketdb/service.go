// Package marketdb holds all the migrations for the market index database
package marketdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every migration file registers into via init().
var Migrations = migrate.NewMigrations()
