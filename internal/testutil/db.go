// Package testutil opens throwaway SQLite databases mirroring the MySQL
// schema so repository and service tests run without a server. The
// repositories stick to portable SQL (? placeholders, times passed from
// Go) precisely so both drivers accept it.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lastname TEXT NOT NULL DEFAULT '',
    firstname TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at DATETIME NOT NULL
);
CREATE TABLE refresh_tokens (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    token_hash TEXT NOT NULL,
    expires_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    revoked_at DATETIME
);
CREATE TABLE books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    author TEXT NOT NULL,
    genre TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    release_date DATETIME,
    cover_image TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
CREATE TABLE samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    unique_code TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'AVAILABLE',
    procurement_date DATETIME,
    localization TEXT NOT NULL DEFAULT ''
);
CREATE TABLE borrows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    sample_id INTEGER NOT NULL REFERENCES samples(id),
    approved_by INTEGER REFERENCES users(id),
    borrowed_at DATETIME NOT NULL,
    begin_date DATETIME NOT NULL,
    end_date DATETIME NOT NULL,
    returned_at DATETIME,
    status TEXT NOT NULL DEFAULT 'PENDING'
);
CREATE TABLE notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    borrow_id INTEGER REFERENCES borrows(id),
    type TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    viewed BOOLEAN NOT NULL DEFAULT 0
);
`

// OpenDB returns an in-memory database with the full schema applied. The
// connection is closed when the test finishes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_loc=UTC")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// In-memory SQLite lives in a single connection; a second one would
	// see an empty database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
