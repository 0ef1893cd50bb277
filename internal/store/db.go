// Package store owns the harvested-contacts table and the
// dedup + verify + persist contract around it.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite connection to the app-owned contacts database.
type DB struct {
	*sql.DB

	verifier    Verifier
	minPhoneLen int
}

// Option adjusts store behavior.
type Option func(*DB)

// WithMinPhoneLength overrides the minimum accepted length of a normalized
// phone number. The default of 12 matches the strict source of record;
// looser deployments lower it.
func WithMinPhoneLength(n int) Option {
	return func(db *DB) { db.minPhoneLen = n }
}

// Open creates a SQLite connection with WAL mode and recommended pragmas.
// The verifier is consulted synchronously by SaveContact before any insert.
func Open(path string, verifier Verifier, opts ...Option) (*DB, error) {
	raw, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db := &DB{DB: raw, verifier: verifier, minPhoneLen: 12}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}
