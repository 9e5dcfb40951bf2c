// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL, PostgreSQL or SQLite
// connections for the destination document store from the application's
// configuration.
//
// # Connect
//
// Connect opens the configured dialect, applies pool settings and pings the
// database with the configured timeout. SQLite connections are limited to a
// single connection so in-memory databases survive between queries.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns report the columns of a table, which the
// asset store uses to verify its tables before serving synchronizations.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "asset_documents", []string{"id", "name"})
package database
