// Package mirror keeps a durable copy of a codebook in SQLite. Machines only
// write to it; reading is for inspection tools.
package mirror

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sarchlab/vexi/codebook"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("mirror: record not found")

const schema = `CREATE TABLE IF NOT EXISTS codebook (
	book  TEXT NOT NULL,
	key   BLOB NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (book, key)
)`

// Store is a codebook.Sink backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the mirror at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mirror: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("mirror: init %s: %w", path, err)
		}
	}

	return &Store{db: db}, nil
}

// WriteEntries replaces the stored copy of every given entry in one
// transaction.
func (s *Store) WriteEntries(book string, entries []codebook.Entry) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("mirror: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO codebook (book, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("mirror: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		value, err := MarshalEntry(e)
		if err != nil {
			return fmt.Errorf("mirror: encode %s: %w", e, err)
		}
		if _, err := stmt.Exec(book, Key(e.Category, e.Opcode), value); err != nil {
			return fmt.Errorf("mirror: write %s: %w", e, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mirror: commit: %w", err)
	}
	return nil
}

// Get reads one record back.
func (s *Store) Get(book string, c codebook.Category, op codebook.Opcode) (Record, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM codebook WHERE book = ? AND key = ?`,
		book, Key(c, op)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s 0x%02X", ErrNotFound, c.Name(), op)
	}
	if err != nil {
		return Record{}, fmt.Errorf("mirror: read: %w", err)
	}
	return UnmarshalRecord(value)
}

// Count returns the number of records stored for a codebook.
func (s *Store) Count(book string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM codebook WHERE book = ?`, book).Scan(&n); err != nil {
		return 0, fmt.Errorf("mirror: count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
