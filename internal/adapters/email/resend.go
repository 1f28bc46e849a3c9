package email

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers certificate emails via the Resend API. The inline
// image is attached with a content-id so it renders inline like the SMTP
// provider's output.
type ResendSender struct {
	client            *resend.Client
	from              string
	allowMissingImage bool
}

// NewResendSender creates a new ResendSender with the given API key and
// default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
// POST: Returns a ready-to-use sender
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send delivers a single email via Resend in one attempt.
// PRE: req.To is set; req.InlinePNG points to a readable PNG
// POST: Email is queued for delivery; errors wrap ErrDelivery
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.To == "" {
		return SendResult{}, fmt.Errorf("%w: %v", ErrDelivery, ErrNoRecipient)
	}
	if req.InlinePNG == "" && !s.allowMissingImage {
		return SendResult{}, fmt.Errorf("%w: %v", ErrDelivery, ErrNoInlineImage)
	}

	from := req.From
	if from == "" {
		from = s.from
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{req.To},
		Subject: req.Subject,
		Text:    req.Text,
		Html:    req.HTML,
	}

	if req.InlinePNG != "" {
		data, err := os.ReadFile(req.InlinePNG)
		if err != nil {
			return SendResult{}, fmt.Errorf("%w: read inline image: %v", ErrDelivery, err)
		}
		params.Attachments = []*resend.Attachment{{
			Filename:    req.AttachmentName,
			Content:     data,
			ContentType: "image/png",
			ContentId:   req.AttachmentName,
		}}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", req.To, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("%w: resend: %v", ErrDelivery, err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: sent.Id,
		SentAt:    time.Now(),
	}, nil
}
