package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	mail "github.com/go-mail/mail"
)

// SMTPSender delivers certificate emails over an implicit-TLS SMTP
// submission endpoint, authenticating with the sender address and an
// app-level password. The certificate image travels as a related inline
// part referenced from the HTML body by content-id, so compliant clients
// render it in place rather than as a bare attachment.
type SMTPSender struct {
	host              string
	port              int
	from              string
	password          string
	allowMissingImage bool
}

// SMTPOption configures an SMTPSender.
type SMTPOption func(*SMTPSender)

// WithAllowMissingImage lets a message go out without the inline embed.
// Off by default: a certificate email with no certificate is treated as a
// caller bug, not something to degrade into silently.
func WithAllowMissingImage() SMTPOption {
	return func(s *SMTPSender) { s.allowMissingImage = true }
}

// NewSMTPSender creates a sender for the given submission endpoint.
// PRE: host and from are non-empty; port is an SSL submission port (e.g. 465)
// POST: Returns a ready-to-use sender; no connection is made yet
func NewSMTPSender(host string, port int, from, password string, opts ...SMTPOption) *SMTPSender {
	s := &SMTPSender{host: host, port: port, from: from, password: password}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send composes and delivers one email in a single attempt.
// PRE: req.To is set; req.InlinePNG is set unless the sender allows missing images
// POST: Exactly one delivery attempt was made; errors wrap ErrDelivery
func (s *SMTPSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	m, err := s.compose(req)
	if err != nil {
		return SendResult{}, err
	}

	d := mail.NewDialer(s.host, s.port, s.from, s.password)
	d.SSL = true
	d.TLSConfig = &tls.Config{ServerName: s.host}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		slog.Error("smtp_send_cancelled", "to", req.To, "err", ctx.Err())
		return SendResult{}, fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
	case err := <-done:
		if err != nil {
			slog.Error("smtp_send_failed", "host", s.host, "to", req.To, "err", err)
			return SendResult{}, fmt.Errorf("%w: %v", ErrDelivery, err)
		}
	}

	sentAt := time.Now()
	slog.Info("smtp_sent", "to", req.To, "subject", req.Subject)
	return SendResult{MessageID: fmt.Sprintf("smtp-%d", sentAt.UnixNano()), SentAt: sentAt}, nil
}

// compose builds the MIME message: plain text body, HTML alternative, and
// the inline image as a related part whose content-id is the attachment name.
func (s *SMTPSender) compose(req SendRequest) (*mail.Message, error) {
	if req.To == "" {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, ErrNoRecipient)
	}
	if req.InlinePNG == "" && !s.allowMissingImage {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, ErrNoInlineImage)
	}

	from := req.From
	if from == "" {
		from = s.from
	}

	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", req.To)
	m.SetHeader("Subject", req.Subject)
	m.SetBody("text/plain", req.Text)
	if req.HTML != "" {
		m.AddAlternative("text/html", req.HTML)
	}
	if req.InlinePNG != "" {
		// go-mail uses the embedded file's name as its content-id.
		m.Embed(req.InlinePNG, mail.Rename(req.AttachmentName))
	}
	return m, nil
}
