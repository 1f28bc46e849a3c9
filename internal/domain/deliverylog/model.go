package deliverylog

import (
	"errors"
	"time"
)

// Status constants for delivery-log entries.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Domain errors.
var (
	ErrEmptyBatchID = errors.New("batch id is required")
	ErrEmptyEvent   = errors.New("event name is required")
	ErrEmptyRowName = errors.New("row name is required")
)

// Entry records the dispatch outcome for one roster row. The log is the
// audit trail behind at-most-once delivery: a rerun with resume enabled
// skips recipients that already have a sent entry for the same event.
type Entry struct {
	ID           string
	BatchID      string
	EventName    string
	RowIndex     int
	RowName      string
	Recipient    string
	Status       string // sent, skipped, failed
	MessageID    string // provider message ID when sent
	ErrorMessage string // failure reason when failed
	CreatedAt    time.Time
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if e.BatchID == "" {
		return ErrEmptyBatchID
	}
	if e.EventName == "" {
		return ErrEmptyEvent
	}
	if e.RowName == "" {
		return ErrEmptyRowName
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// MarkSent records a successful delivery.
// PRE: the provider accepted the message
// POST: Status is sent, MessageID is set, ErrorMessage cleared
func (e *Entry) MarkSent(messageID string) {
	e.Status = StatusSent
	e.MessageID = messageID
	e.ErrorMessage = ""
}

// MarkSkipped records that no delivery was attempted.
// PRE: the row had no recipient or was already delivered in a prior run
// POST: Status is skipped
func (e *Entry) MarkSkipped(reason string) {
	e.Status = StatusSkipped
	e.ErrorMessage = reason
}

// MarkFailed records a failed delivery attempt.
// PRE: err is non-nil
// POST: Status is failed, ErrorMessage set
func (e *Entry) MarkFailed(err error) {
	e.Status = StatusFailed
	if err != nil {
		e.ErrorMessage = err.Error()
	}
}
