// Package database manages the fleetd SQLite store.
//
// The store holds the device inventory, user accounts, session
// records, and the audit trail. One Open call at startup produces a
// *DB shared by every repository; the embedded *sql.DB carries the
// standard query surface, while the wrapper owns connection setup,
// the health check, and schema migrations.
//
// Schema changes ship as embedded .sql files applied through Migrate:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Files()); err != nil {
//	    return err
//	}
//
// Each migration is an up/down pair and runs in its own transaction,
// recorded in the schema_migrations table. Migrations are additive:
// new columns are nullable or carry defaults, and nothing is dropped
// or renamed once released, so an older binary can still read a newer
// file.
//
// The database file is created mode 0600. It contains password hashes
// and session token hashes, and every query in the repositories uses
// parameterised statements.
package database
