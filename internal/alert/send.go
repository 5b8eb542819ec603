package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/TAMATLT/ferryd/internal/config"
)

// Upper bound on connection setup. Sends normally finish in well under
// a second; the budget only matters when the SMTP host is unreachable.
const dialBudget = 30 * time.Second

// SendMail delivers one finished RFC 5322 message. Every call dials a
// fresh connection and tears it down afterwards, which suits a mailer
// that fires a few times a day at most. recipients carries bare
// addresses for the envelope; display names belong in the message
// header, not here.
func SendMail(ctx context.Context, cfg config.SMTPConfig, from string, recipients []string, msg []byte) error {
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, to := range recipients {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", to, err)
		}
	}

	data, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := data.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := data.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}

	return client.Quit()
}

// connect dials the configured SMTP host and returns a client that has
// finished EHLO and, where configured, the STARTTLS upgrade. Implicit
// TLS in the port 465 style is the default; start_tls selects the
// plain-then-upgrade flow used on 587.
func connect(ctx context.Context, cfg config.SMTPConfig) (*smtp.Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialer := &net.Dialer{Timeout: dialBudget}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < dialer.Timeout {
			dialer.Timeout = left
		}
	}

	var conn net.Conn
	var err error
	if cfg.StartTLS {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake with %s: %w", addr, err)
	}
	if err := client.Hello("localhost"); err != nil {
		client.Close()
		return nil, fmt.Errorf("EHLO: %w", err)
	}
	if cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS: %w", err)
		}
	}
	return client, nil
}

// extractAddress reduces "Name <user@host>" to user@host. Bare
// addresses pass through unchanged.
func extractAddress(s string) string {
	if strings.HasSuffix(s, ">") {
		if open := strings.LastIndexByte(s, '<'); open >= 0 {
			return s[open+1 : len(s)-1]
		}
	}
	return s
}
