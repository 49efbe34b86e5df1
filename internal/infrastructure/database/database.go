package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions restricts the data directory to the service user.
	dirPermissions = 0750

	// filePermissions keeps the database file owner read/write only.
	// Password hashes and session token hashes live in this file.
	filePermissions = 0600

	// openTimeout bounds the connectivity check during Open.
	openTimeout = 5 * time.Second

	// idleConnLifetime is how long an idle connection is kept before
	// being recycled.
	idleConnLifetime = 30 * time.Minute
)

// Config selects the SQLite file and its locking behaviour.
// It maps to the database section of config.yaml.
type Config struct {
	// Path is the SQLite database file. Parent directories are created
	// on first run.
	Path string

	// WALMode enables Write-Ahead Logging so API reads are not blocked
	// by audit and inventory writes.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits on a lock
	// before failing with SQLITE_BUSY.
	BusyTimeout int
}

// DB is the fleetd database handle. It embeds *sql.DB, so repositories
// use the standard query methods directly; the wrapper adds lifecycle
// management and schema migrations on top.
type DB struct {
	*sql.DB
}

// Open connects to the SQLite database described by cfg, creating the
// file and its directory on first run.
//
// Foreign key enforcement is always on. With WALMode set, the journal
// is switched to WAL with synchronous=NORMAL, which suits fleetd's
// workload of frequent small API reads alongside bursts of audit
// writes. The pool is pinned to a single connection because SQLite
// allows only one writer; contention is handled by the busy timeout
// rather than by Go-side pooling.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database handle
//   - error: If the directory cannot be created or the file is unusable
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(idleConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// Tighten the file mode after the ping has forced creation.
	if err := os.Chmod(cfg.Path, filePermissions); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("setting database file permissions: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// buildDSN assembles the go-sqlite3 connection string for cfg.
// See https://github.com/mattn/go-sqlite3#connection-string for the
// pragma query parameters.
func buildDSN(cfg Config) string {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		time.Duration(cfg.BusyTimeout)*time.Second/time.Millisecond,
	)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn
}

// Close releases the underlying connection. Safe to call on a handle
// whose connection is already gone.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database answers a trivial query.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
