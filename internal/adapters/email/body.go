package email

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// certificateMarkdown is the salutation body in Markdown. It is rendered to
// HTML with goldmark for the HTML alternative and kept nearly verbatim as
// the plain-text fallback.
const certificateMarkdown = `Dear **%s**,

Please find your certificate for **%s** below.

Regards,
Event Team`

// Body holds both alternatives of a composed certificate email.
type Body struct {
	Text string
	HTML string
}

// BuildCertificateBody renders the salutation for one recipient. When cid
// is non-empty the HTML embeds the certificate image inline via a
// cid: reference; the plain-text fallback never references the image.
// PRE: name and eventName are non-empty
// POST: Returns both body alternatives, or an error if Markdown rendering fails
func BuildCertificateBody(name, eventName, cid string) (Body, error) {
	md := fmt.Sprintf(certificateMarkdown, name, eventName)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return Body{}, fmt.Errorf("render email body: %w", err)
	}

	html := buf.String()
	if cid != "" {
		img := fmt.Sprintf(`<p><img src="cid:%s" width="700" alt="%s certificate"></p>`, cid, eventName)
		// Inline image sits between the salutation paragraph and the sign-off.
		if i := strings.LastIndex(html, "<p>Regards"); i >= 0 {
			html = html[:i] + img + "\n" + html[i:]
		} else {
			html += img
		}
	}

	text := fmt.Sprintf("Dear %s,\n\nPlease find your certificate for %s attached.\n\nRegards,\nEvent Team\n", name, eventName)
	return Body{
		Text: text,
		HTML: `<html><body style="font-family: Arial">` + html + `</body></html>`,
	}, nil
}
