// Package clientdb holds all the migrations for the crowdfund client database
package clientdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the client database
var Migrations = migrate.NewMigrations()
