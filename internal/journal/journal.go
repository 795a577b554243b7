// Package journal persists scenario runs and the breaches they produced.
//
// The journal is a SQLite database in WAL mode with a single connection.
// Runs are ordered by a journal sequence number, never by wall-clock time,
// so two journals built from the same runs list them identically.
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on breaches.kind
const currentSchemaVersion = 1

// Journal provides durable storage for run results.
// One Journal owns one connection; share it rather than opening the same
// path twice in a process.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at path. ":memory:" gives an
// isolated in-memory journal.
//
// The database is configured with:
//   - WAL mode so report can read while run is writing
//   - NORMAL synchronous mode; a crash may drop the last run, never corrupt
//   - 5-second busy timeout when another process holds the write lock
//   - Foreign key enforcement, so breaches cannot outlive their run
//
// Opening an existing journal is safe: the schema and migrations only add
// what is missing, and recorded runs are left untouched.
func Open(path string) (*Journal, error) {
	// sql.Open is lazy; the file is created on first connect.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time. A single pooled connection
	// also keeps per-connection pragmas (and a ":memory:" database) alive for
	// the life of the Journal.
	db.SetMaxOpenConns(1) // one writer, no SQLITE_BUSY between our own conns
	db.SetMaxIdleConns(1) // never drop the configured connection

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection. Closing a zero Journal is a no-op.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// applyPragmas configures the connection. journal_mode is persistent in the
// file; the others are per connection, which is why the pool holds one.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Every statement in schema.sql uses IF NOT EXISTS, so this is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	// Older journals predate some indexes; bring them forward.
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
// Migrations run in order and each one must tolerate an already-migrated
// database, since a fresh file starts at version 0 with the full schema.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	// Stamp the version only after every migration succeeded.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes breaches by kind for BreachCounts and the metrics
// export. The index is not in schema.sql, so every journal gets it here.
func migrateToV1(db *sql.DB) error {
	// IF NOT EXISTS makes a re-run a no-op.
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_breaches_kind ON breaches(kind)`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// schemaVersion returns PRAGMA user_version. Used by tests.
func (j *Journal) schemaVersion() (int, error) {
	var v int
	err := j.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// verifyPragma checks that a pragma holds the expected value on the
// journal's connection. Used by tests.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
