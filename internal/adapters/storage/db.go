package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLDB is the database interface used by all stores, satisfied by *sql.DB.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// DSN builds the SQLite connection string with the pragmas every certmill
// database uses: WAL journaling, a busy timeout, and foreign keys on.
func DSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
}

// InitDB initializes the delivery-log schema.
// PRE: db is a valid database connection
// POST: All tables and indexes exist; safe to call repeatedly
func InitDB(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS delivery_log (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		event_name TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		row_name TEXT NOT NULL,
		recipient TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_delivery_log_batch ON delivery_log(batch_id, row_index);
	CREATE INDEX IF NOT EXISTS idx_delivery_log_event ON delivery_log(event_name, status);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
