// Package sqlitetest builds throwaway SQLite files for tests.
package sqlitetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// MiniCRM is a small customers/orders schema with deterministic data.
var MiniCRM = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, revenue REAL NOT NULL)`,
	`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL REFERENCES customers(id), total REAL NOT NULL, placed_at TEXT)`,
	`INSERT INTO customers (id, name, revenue) VALUES (1, 'Acme', 1200.5), (2, 'Globex', 830), (3, 'Initech', 2100)`,
	`INSERT INTO orders (id, customer_id, total, placed_at) VALUES (1, 1, 200, '2024-01-05'), (2, 3, 900, '2024-02-11'), (3, 3, 1200, '2024-03-02')`,
}

// NewDB creates a SQLite file in t.TempDir() and runs statements against it.
func NewDB(t testing.TB, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("exec %q: %v", statement, err)
		}
	}
	// An empty database has no header until something is written.
	if len(statements) == 0 {
		if _, err := db.Exec(`PRAGMA user_version = 1`); err != nil {
			t.Fatalf("initialize sqlite file: %v", err)
		}
	}
	return path
}
