// Package db is the local SQLite mirror of the chat history
// table, plus the user accounts and import bookkeeping used by
// the local backend.
package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DB manages a write connection and a read-only pool.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // serializes writes
}

// makeDSN builds a SQLite connection string with shared pragmas.
func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "ON")
	params.Set("_cache_size", "-16000")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// Open creates or opens a SQLite database at the given path
// with one writer connection and a small read-only pool.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	writer, err := sql.Open("sqlite3", makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	db := &DB{writer: writer}
	// The schema must exist before a read-only connection can
	// open a fresh file.
	if err := db.init(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	reader, err := sql.Open("sqlite3", makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	db.reader = reader
	return db, nil
}

// migration upgrades a database by one schema version.
type migration struct {
	name string
	run  func(tx *sql.Tx) error
}

// migrations run in order on top of schema.sql. PRAGMA
// user_version holds how many have been applied.
var migrations = []migration{
	{"add sort_key", func(tx *sql.Tx) error {
		if err := ensureColumn(tx,
			"chat_messages", "sort_key", "TEXT NOT NULL DEFAULT ''",
		); err != nil {
			return err
		}
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_messages_sort
			ON chat_messages(sort_key DESC, id DESC)`)
		return err
	}},
	{"backfill sort_key", backfillSortKeys},
}

// ensureColumn adds a column if it doesn't already exist.
func ensureColumn(tx *sql.Tx, table, column, definition string) error {
	var count int
	err := tx.QueryRow(
		"SELECT count(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = tx.Exec(fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN %s %s", table, column, definition,
	))
	return err
}

// backfillSortKeys fills sort_key for rows written before the
// column existed.
func backfillSortKeys(tx *sql.Tx) error {
	rows, err := tx.Query(
		"SELECT id, timestamp FROM chat_messages WHERE sort_key = ''",
	)
	if err != nil {
		return err
	}
	keys := make(map[int64]string)
	for rows.Next() {
		var id int64
		var ts string
		if err := rows.Scan(&id, &ts); err != nil {
			rows.Close()
			return err
		}
		if k := sortKey(ts); k != "" {
			keys[id] = k
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		"UPDATE chat_messages SET sort_key = ? WHERE id = ?",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for id, k := range keys {
		if _, err := stmt.Exec(k, id); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) init() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.writer.Exec(schemaSQL); err != nil {
		return err
	}

	var version int
	if err := db.writer.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		m := migrations[i]
		tx, err := db.writer.Begin()
		if err != nil {
			return err
		}
		if err := m.run(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// schemaVersion reports how many migrations have been applied.
func (db *DB) schemaVersion() (int, error) {
	var v int
	err := db.reader.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// Close closes both writer and reader connections.
func (db *DB) Close() error {
	return errors.Join(db.writer.Close(), db.reader.Close())
}

// Update executes fn within a write lock and transaction.
// The transaction is committed if fn returns nil, rolled back
// otherwise.
func (db *DB) Update(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.writer.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Reader returns the read-only connection pool.
func (db *DB) Reader() *sql.DB {
	return db.reader
}
