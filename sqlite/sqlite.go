// Package sqlite stores records and the pending import batch in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fwojciec/urlkeep"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path, Now: time.Now}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to open database")
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database only lives as long as its connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to connect to database")
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if db.path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to apply %q", p)
		}
	}

	db.db = conn

	if err := db.createSchema(); err != nil {
		conn.Close()
		return urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to create schema")
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction. With a single connection, nothing else
// reaches the database until it ends.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// querier is satisfied by both *DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) now() time.Time {
	return db.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value, field string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to parse %s", field)
	}
	return t, nil
}

func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL UNIQUE,
			location TEXT NOT NULL,
			canonical_url TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL DEFAULT '',
			extractor TEXT NOT NULL DEFAULT '',
			fields TEXT NOT NULL DEFAULT '{}',
			content_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_extractor ON records(extractor);
		CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);

		CREATE TABLE IF NOT EXISTS pending_entries (
			slot TEXT PRIMARY KEY,
			source_text TEXT NOT NULL,
			fields TEXT NOT NULL DEFAULT '{}',
			state TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS batch_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO batch_meta (id, version) VALUES (1, 0);
	`

	if _, err := db.db.Exec(schema); err != nil {
		return err
	}
	return db.migrate()
}

// migrate adds columns missing from databases created by older versions.
func (db *DB) migrate() error {
	var n int
	err := db.db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('pending_entries') WHERE name = 'owner'",
	).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.db.Exec("ALTER TABLE pending_entries ADD COLUMN owner TEXT NOT NULL DEFAULT ''")
	return err
}
