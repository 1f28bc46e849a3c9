package deliverylog

import (
	"context"

	domain "certmill/internal/domain/deliverylog"
)

// Store is the persistence interface for delivery-log entries.
type Store interface {
	// Save persists an entry (insert or update by ID).
	Save(ctx context.Context, e domain.Entry) error
	// ListByBatch returns all entries of a batch in row order.
	ListByBatch(ctx context.Context, batchID string) ([]domain.Entry, error)
	// SentRecipients returns the set of recipient addresses that already
	// have a sent entry for the given event, across all batches.
	SentRecipients(ctx context.Context, eventName string) (map[string]bool, error)
}
