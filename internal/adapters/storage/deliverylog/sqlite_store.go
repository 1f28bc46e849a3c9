package deliverylog

import (
	"context"
	"database/sql"
	"time"

	"certmill/internal/adapters/storage"
	domain "certmill/internal/domain/deliverylog"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the delivery-log Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new delivery-log store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists a delivery-log entry to the database.
// PRE: entry has been validated
// POST: Entry is persisted (insert or update by ID)
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_log (id, batch_id, event_name, row_index, row_name, recipient, status, message_id, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   batch_id=excluded.batch_id, event_name=excluded.event_name,
		   row_index=excluded.row_index, row_name=excluded.row_name,
		   recipient=excluded.recipient, status=excluded.status,
		   message_id=excluded.message_id, error_message=excluded.error_message`,
		e.ID, e.BatchID, e.EventName, e.RowIndex, e.RowName, e.Recipient,
		e.Status, e.MessageID, e.ErrorMessage, e.CreatedAt.Format(dateLayout))
	return err
}

// ListByBatch returns all entries of a batch ordered by row index.
// PRE: batchID is non-empty
// POST: Returns entries in roster order; empty slice when the batch is unknown
func (s *SQLiteStore) ListByBatch(ctx context.Context, batchID string) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, event_name, row_index, row_name, recipient, status, message_id, error_message, created_at
		 FROM delivery_log WHERE batch_id = ? ORDER BY row_index ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SentRecipients returns addresses with a sent entry for the event.
// PRE: eventName is non-empty
// POST: Returns a set keyed by recipient address; never nil
func (s *SQLiteStore) SentRecipients(ctx context.Context, eventName string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT recipient FROM delivery_log WHERE event_name = ? AND status = ? AND recipient != ''`,
		eventName, domain.StatusSent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sent := make(map[string]bool)
	for rows.Next() {
		var recipient string
		if err := rows.Scan(&recipient); err != nil {
			return nil, err
		}
		sent[recipient] = true
	}
	return sent, rows.Err()
}

func scanEntry(rows *sql.Rows) (domain.Entry, error) {
	var e domain.Entry
	var createdAt string
	if err := rows.Scan(&e.ID, &e.BatchID, &e.EventName, &e.RowIndex, &e.RowName,
		&e.Recipient, &e.Status, &e.MessageID, &e.ErrorMessage, &createdAt); err != nil {
		return domain.Entry{}, err
	}
	if t, err := time.Parse(dateLayout, createdAt); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}
