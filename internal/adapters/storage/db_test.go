package storage

import (
	"database/sql"
	"sort"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestInitDB_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	tables := getTableNames(t, db)
	if len(tables) != 1 || tables[0] != "delivery_log" {
		t.Errorf("tables = %v, want [delivery_log]", tables)
	}

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name='delivery_log' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		t.Fatalf("failed to query indexes: %v", err)
	}
	defer rows.Close()
	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	if len(indexes) != 2 {
		t.Errorf("indexes = %v, want 2 entries", indexes)
	}
}

func TestInitDB_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("first InitDB failed: %v", err)
	}
	if err := InitDB(db); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN("certmill.db")
	if !strings.HasPrefix(dsn, "certmill.db?") {
		t.Errorf("dsn = %q, want certmill.db path prefix", dsn)
	}
	for _, pragma := range []string{"journal_mode(WAL)", "busy_timeout(5000)", "foreign_keys(ON)", "synchronous(NORMAL)"} {
		if !strings.Contains(dsn, pragma) {
			t.Errorf("dsn = %q, missing pragma %q", dsn, pragma)
		}
	}
}
