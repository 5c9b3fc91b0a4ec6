// Package pricedb holds all the migrations for the price index database
package pricedb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the price index database
var Migrations = migrate.NewMigrations()
