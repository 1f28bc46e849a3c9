package email

import (
	"context"
	"errors"
	"time"
)

// Delivery errors. ErrDelivery wraps every provider failure; a delivery
// failure is fatal for the row being dispatched, never for the batch.
var (
	ErrDelivery      = errors.New("delivery failed")
	ErrNoRecipient   = errors.New("recipient address is required")
	ErrNoInlineImage = errors.New("inline certificate image is required")
)

// SendRequest contains the data needed to deliver one certificate email.
type SendRequest struct {
	To             string // Recipient email address
	From           string // Sender address; falls back to the provider default
	Subject        string
	Text           string // Plain-text fallback body
	HTML           string // HTML alternative, referencing the inline image by cid
	InlinePNG      string // Path to the certificate image embedded inline
	AttachmentName string // Filename (and content-id) for the embedded image, e.g. "GopherConf.png"
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for delivering certificate emails. Exactly one
// attempt is made per call; there is no retry inside a provider, so a
// successful Send means at most one email reached the recipient.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
