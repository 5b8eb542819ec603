package alert

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
)

// ComposeOptions names the pieces of one outgoing alert. Body is
// markdown; ComposeMessage renders it twice, once per MIME part.
type ComposeOptions struct {
	// From is the sender, either "Name <addr@host>" or a bare address.
	From string

	// To lists the recipients in the same format.
	To []string

	// Subject is the subject line.
	Subject string

	// Body is the markdown source of the message.
	Body string
}

// ComposeMessage builds a finished RFC 5322 message whose body is a
// multipart/alternative pairing of text/plain and text/html, so the
// alert reads fine in anything from mutt to a phone mail client.
func ComposeMessage(opts ComposeOptions) ([]byte, error) {
	header, err := buildHeader(opts)
	if err != nil {
		return nil, err
	}

	html, err := htmlBody(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	alt, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create alternative section: %w", err)
	}
	if err := writeInlinePart(alt, "text/plain; charset=utf-8", plainBody(opts.Body)); err != nil {
		return nil, err
	}
	if err := writeInlinePart(alt, "text/html; charset=utf-8", html); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("close alternative section: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}

	return buf.Bytes(), nil
}

// buildHeader assembles Date, Message-ID, Subject and the address
// fields.
func buildHeader(opts ComposeOptions) (mail.Header, error) {
	var h mail.Header

	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return h, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(opts.Subject)

	sender, err := mail.ParseAddress(opts.From)
	if err != nil {
		return h, fmt.Errorf("parse from address %q: %w", opts.From, err)
	}
	h.SetAddressList("From", []*mail.Address{sender})

	to := make([]*mail.Address, 0, len(opts.To))
	for _, raw := range opts.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return h, fmt.Errorf("parse to address %q: %w", raw, err)
		}
		to = append(to, addr)
	}
	h.SetAddressList("To", to)

	return h, nil
}

// writeInlinePart adds one rendering of the body to the
// multipart/alternative section.
func writeInlinePart(w *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(part, body); err != nil {
		part.Close()
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("close %s part: %w", contentType, err)
	}
	return nil
}

// htmlShell frames the rendered markdown. Styles stay inline because
// mail clients mostly ignore <style> blocks.
const htmlShell = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; line-height: 1.4; max-width: 42em;">
%s
</body>
</html>`

// htmlBody renders markdown through goldmark and wraps the fragment in
// a minimal envelope with no external resources.
func htmlBody(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return fmt.Sprintf(htmlShell, buf.String()), nil
}

// plainRules strip markdown syntax in application order. Fenced code
// is unwrapped first so the inline rules never touch its contents, and
// links keep their target in parentheses.
var plainRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```"), "$1"},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), "$1 ($2)"},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`\*(.+?)\*`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
}

// plainBody strips markdown down to readable text. List markers are
// left alone; "- item" needs no translation.
func plainBody(md string) string {
	for _, rule := range plainRules {
		md = rule.re.ReplaceAllString(md, rule.repl)
	}
	return strings.TrimSpace(md)
}
