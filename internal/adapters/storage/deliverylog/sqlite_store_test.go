package deliverylog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"certmill/internal/adapters/storage"
	domain "certmill/internal/domain/deliverylog"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return NewSQLiteStore(db)
}

func testEntry(id string, rowIndex int) domain.Entry {
	return domain.Entry{
		ID:        id,
		BatchID:   "batch-1",
		EventName: "Go Workshop 2026",
		RowIndex:  rowIndex,
		RowName:   "Ada Lovelace",
		Recipient: "ada@example.com",
		Status:    domain.StatusSent,
		MessageID: "msg-" + id,
		CreatedAt: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_SaveAndListByBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	second := testEntry("entry-2", 2)
	second.RowName = "Grace Hopper"
	second.Recipient = "grace@example.com"
	for _, e := range []domain.Entry{second, testEntry("entry-1", 1)} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s) failed: %v", e.ID, err)
		}
	}

	entries, err := store.ListByBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("ListByBatch failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RowIndex != 1 || entries[1].RowIndex != 2 {
		t.Errorf("entries not ordered by row index: %d, %d", entries[0].RowIndex, entries[1].RowIndex)
	}

	got := entries[0]
	if got.BatchID != "batch-1" || got.EventName != "Go Workshop 2026" {
		t.Errorf("batch fields lost: %+v", got)
	}
	if got.RowName != "Ada Lovelace" || got.Recipient != "ada@example.com" {
		t.Errorf("row fields lost: %+v", got)
	}
	if got.Status != domain.StatusSent || got.MessageID != "msg-entry-1" {
		t.Errorf("delivery fields lost: %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestSQLiteStore_SaveUpsertsByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("entry-1", 1)
	entry.Status = domain.StatusFailed
	entry.MessageID = ""
	entry.ErrorMessage = "smtp timeout"
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entry.MarkSent("msg-retry")
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	entries, err := store.ListByBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("ListByBatch failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 after upsert", len(entries))
	}
	if entries[0].Status != domain.StatusSent || entries[0].MessageID != "msg-retry" {
		t.Errorf("upsert did not update: %+v", entries[0])
	}
	if entries[0].ErrorMessage != "" {
		t.Errorf("error message not cleared: %q", entries[0].ErrorMessage)
	}
}

func TestSQLiteStore_ListByBatch_UnknownBatch(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.ListByBatch(context.Background(), "no-such-batch")
	if err != nil {
		t.Fatalf("ListByBatch failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestSQLiteStore_SentRecipients(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sent := testEntry("entry-1", 1)

	failed := testEntry("entry-2", 2)
	failed.Recipient = "grace@example.com"
	failed.MarkFailed(context.DeadlineExceeded)

	skipped := testEntry("entry-3", 3)
	skipped.Recipient = ""
	skipped.MarkSkipped("no recipient address")

	otherEvent := testEntry("entry-4", 1)
	otherEvent.BatchID = "batch-2"
	otherEvent.EventName = "Rust Workshop 2026"
	otherEvent.Recipient = "linus@example.com"

	for _, e := range []domain.Entry{sent, failed, skipped, otherEvent} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s) failed: %v", e.ID, err)
		}
	}

	recipients, err := store.SentRecipients(ctx, "Go Workshop 2026")
	if err != nil {
		t.Fatalf("SentRecipients failed: %v", err)
	}
	if len(recipients) != 1 || !recipients["ada@example.com"] {
		t.Errorf("recipients = %v, want only ada@example.com", recipients)
	}
}

func TestSQLiteStore_SentRecipients_EmptyEvent(t *testing.T) {
	store := newTestStore(t)

	recipients, err := store.SentRecipients(context.Background(), "Go Workshop 2026")
	if err != nil {
		t.Fatalf("SentRecipients failed: %v", err)
	}
	if recipients == nil {
		t.Fatal("recipients is nil, want empty map")
	}
	if len(recipients) != 0 {
		t.Errorf("recipients = %v, want empty", recipients)
	}
}
