package certificate

import (
	"errors"
	"time"
)

// Status constants for the per-row certificate lifecycle.
const (
	StatusPending         = "pending"
	StatusFilled          = "filled"
	StatusRendered        = "rendered"
	StatusDispatched      = "dispatched"
	StatusDispatchSkipped = "dispatch_skipped"
	StatusFailed          = "failed"
)

// Domain errors
var (
	ErrInvalidTransition = errors.New("invalid certificate status transition")
	ErrEmptyEventName    = errors.New("event name is required")
)

// RowResult tracks one roster row through the pipeline.
// Lifecycle: pending → filled → rendered → (dispatched | dispatch_skipped),
// with failed reachable from filled or rendered. A failed row never blocks
// the rest of the batch.
type RowResult struct {
	Index         int
	Name          string
	Recipient     string
	Status        string
	Images        []string // rendered slide images, in slide order
	MessageID     string   // provider message ID when dispatched
	FailureReason string
}

// MarkFilled records successful placeholder substitution.
// PRE: Status is pending
// POST: Status is filled, or ErrInvalidTransition
func (r *RowResult) MarkFilled() error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Status = StatusFilled
	return nil
}

// MarkRendered records successful rendering with the produced image paths.
// PRE: Status is filled; images is non-empty
// POST: Status is rendered and Images is set, or ErrInvalidTransition
func (r *RowResult) MarkRendered(images []string) error {
	if r.Status != StatusFilled {
		return ErrInvalidTransition
	}
	r.Status = StatusRendered
	r.Images = images
	return nil
}

// MarkDispatched records a successful email delivery.
// PRE: Status is rendered
// POST: Status is dispatched and MessageID is set, or ErrInvalidTransition
func (r *RowResult) MarkDispatched(messageID string) error {
	if r.Status != StatusRendered {
		return ErrInvalidTransition
	}
	r.Status = StatusDispatched
	r.MessageID = messageID
	return nil
}

// MarkDispatchSkipped records that no email was attempted for the row.
// PRE: Status is rendered
// POST: Status is dispatch_skipped, or ErrInvalidTransition
func (r *RowResult) MarkDispatchSkipped() error {
	if r.Status != StatusRendered {
		return ErrInvalidTransition
	}
	r.Status = StatusDispatchSkipped
	return nil
}

// MarkFailed records a row-scoped failure with its reason.
// PRE: err is non-nil
// POST: Status is failed and FailureReason is set
func (r *RowResult) MarkFailed(err error) {
	r.Status = StatusFailed
	if err != nil {
		r.FailureReason = err.Error()
	}
}

// Done reports whether the row reached a terminal non-failed state.
func (r *RowResult) Done() bool {
	return r.Status == StatusDispatched || r.Status == StatusDispatchSkipped
}

// BatchResult aggregates a whole pipeline run. It is owned and mutated only
// by the batch orchestrator and is always produced, even when every row fails.
type BatchResult struct {
	BatchID    string
	EventName  string
	Total      int
	Processed  int
	Sent       int
	Skipped    int
	Failed     int
	Rows       []RowResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record folds a finished row into the aggregate counters.
// PRE: row has reached a terminal status
// POST: Processed is incremented; Sent/Skipped/Failed reflect the row's outcome
func (b *BatchResult) Record(row RowResult) {
	b.Processed++
	switch row.Status {
	case StatusDispatched:
		b.Sent++
	case StatusDispatchSkipped:
		b.Skipped++
	case StatusFailed:
		b.Failed++
	}
	b.Rows = append(b.Rows, row)
}

// Failures returns the rows that ended in the failed state.
func (b *BatchResult) Failures() []RowResult {
	var out []RowResult
	for _, r := range b.Rows {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}
