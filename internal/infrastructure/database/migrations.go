package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Migration is a versioned schema change loaded from a migration
// source. Filenames follow the pattern
//
//	YYYYMMDD_HHMMSS_description.up.sql
//	YYYYMMDD_HHMMSS_description.down.sql
//
// where the timestamp prefix is the version and the description gives
// the migration its name. The down file is optional; without one the
// migration cannot be rolled back.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// AppliedMigration is a row from the schema_migrations ledger.
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
}

// Migrate brings the schema up to date by applying every migration in
// source that is not yet recorded in schema_migrations, oldest first.
// A nil source is a no-op beyond ensuring the ledger table exists.
//
// Each migration runs in its own transaction. When migration N fails,
// everything before it stays committed, N is rolled back, and nothing
// after it is attempted; re-running Migrate after fixing the bad file
// resumes from N. All-or-nothing batches are deliberately not offered,
// since a batch-sized transaction would sit on SQLite's single writer
// for the whole run.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - source: Filesystem containing the .sql migration files
//
// Returns:
//   - error: If a migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context, source fs.FS) error {
	if err := db.ensureLedger(ctx); err != nil {
		return err
	}

	pending, err := db.pendingMigrations(ctx, source)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Intended
// for development; fleetd never rolls back on its own.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - source: Filesystem containing the .sql migration files
//
// Returns:
//   - error: If the rollback fails or the migration has no down SQL
func (db *DB) MigrateDown(ctx context.Context, source fs.FS) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	migrations, err := readMigrations(source)
	if err != nil {
		return err
	}

	var target *Migration
	for i := range migrations {
		if migrations[i].Version == latest.Version {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s not found in source", latest.Version)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", latest.Version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting rollback transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return fmt.Errorf("executing down SQL for %s: %w", target.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", target.Version,
	); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollback: %w", err)
	}
	return nil
}

// MigrationStatus reports which migrations have been applied and which
// are still pending against the given source.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - source: Filesystem containing the .sql migration files
//
// Returns:
//   - applied: Migrations recorded in schema_migrations, oldest first
//   - pending: Migrations in source not yet applied
//   - error: If either side cannot be read
func (db *DB) MigrationStatus(ctx context.Context, source fs.FS) (applied []AppliedMigration, pending []Migration, err error) {
	applied, err = db.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}
	pending, err = db.pendingMigrations(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	return applied, pending, nil
}

// ensureLedger creates the schema_migrations table if missing.
func (db *DB) ensureLedger(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

// pendingMigrations returns the migrations in source that are not in
// the ledger, oldest first.
func (db *DB) pendingMigrations(ctx context.Context, source fs.FS) ([]Migration, error) {
	migrations, err := readMigrations(source)
	if err != nil {
		return nil, err
	}
	if len(migrations) == 0 {
		return nil, nil
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(applied))
	for _, a := range applied {
		seen[a.Version] = true
	}

	var pending []Migration
	for _, m := range migrations {
		if !seen[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// appliedMigrations reads the ledger, oldest first.
func (db *DB) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		var appliedAt string
		if err := rows.Scan(&a.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by applyMigration in RFC3339
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema_migrations: %w", err)
	}
	return applied, nil
}

// applyMigration runs one migration and records it, atomically.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// readMigrations loads every migration pair from the root of source,
// sorted by version. A nil source yields no migrations. Files whose
// names do not match the migration pattern are ignored, as are down
// files with no matching up file.
func readMigrations(source fs.FS) ([]Migration, error) {
	if source == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migration source: %w", err)
	}

	ups := make(map[string]string)
	downs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, isUp, ok := splitMigrationName(entry.Name())
		if !ok {
			continue
		}
		if isUp {
			ups[version] = entry.Name()
		} else {
			downs[version] = entry.Name()
		}
	}

	migrations := make([]Migration, 0, len(ups))
	for version, upFile := range ups {
		m := Migration{
			Version: version,
			Name:    migrationName(upFile),
		}

		upSQL, err := fs.ReadFile(source, upFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", upFile, err)
		}
		m.UpSQL = string(upSQL)

		if downFile, ok := downs[version]; ok {
			downSQL, err := fs.ReadFile(source, downFile)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", downFile, err)
			}
			m.DownSQL = string(downSQL)
		}

		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// splitMigrationName extracts the version and direction from a
// migration filename. ok is false for files that are not migrations.
func splitMigrationName(name string) (version string, isUp bool, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		isUp = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", false, false
	}

	// Version is the YYYYMMDD_HHMMSS prefix.
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", false, false
	}
	return parts[0] + "_" + parts[1], isUp, true
}

// migrationName extracts the description from a migration filename.
// "20260801_120000_initial_schema.up.sql" yields "initial_schema".
func migrationName(filename string) string {
	base := strings.TrimSuffix(filename, ".sql")
	base = strings.TrimSuffix(base, ".up")
	base = strings.TrimSuffix(base, ".down")

	parts := strings.SplitN(base, "_", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return base
}
