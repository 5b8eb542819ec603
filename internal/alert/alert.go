// Package alert emails a human when the ferry loop gives up and goes
// into cooldown. Alerts are throttled: a stuck machine trips cooldowns
// for hours on end, and one mail per quiet period is enough to get
// someone to walk over and look at it.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TAMATLT/ferryd/internal/config"
	"github.com/TAMATLT/ferryd/internal/ferry"
)

// sendFunc matches SendMail so tests can capture outbound mail.
type sendFunc func(ctx context.Context, cfg config.SMTPConfig, from string, recipients []string, msg []byte) error

// Mailer sends cooldown alert mail with quiet-period throttling. Safe
// for concurrent use, though the ferry loop only calls it from one
// goroutine.
type Mailer struct {
	cfg    config.AlertsConfig
	logger *slog.Logger
	send   sendFunc

	mu       sync.Mutex
	lastSent time.Time
}

// NewMailer creates a Mailer for the given alerts configuration.
func NewMailer(cfg config.AlertsConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
		send:   SendMail,
	}
}

// CooldownAlert emails the configured recipient about a transfer
// cooldown. Its signature matches the ferry loop's OnCooldown hook.
// Alerts inside the quiet period are dropped.
func (m *Mailer) CooldownAlert(ctx context.Context, info ferry.CooldownInfo) {
	quiet := time.Duration(m.cfg.QuietPeriodMin) * time.Minute

	m.mu.Lock()
	if !m.lastSent.IsZero() && time.Since(m.lastSent) < quiet {
		m.mu.Unlock()
		m.logger.Debug("cooldown alert suppressed by quiet period",
			"quiet_period", quiet.String())
		return
	}
	m.lastSent = time.Now()
	m.mu.Unlock()

	msg, err := ComposeMessage(ComposeOptions{
		From:    m.cfg.From,
		To:      []string{m.cfg.To},
		Subject: fmt.Sprintf("ferryd: %d transfer failures in a row", info.Failures),
		Body:    cooldownBody(info),
	})
	if err != nil {
		m.logger.Error("compose cooldown alert", "error", err)
		return
	}

	recipients := []string{extractAddress(m.cfg.To)}
	if err := m.send(ctx, m.cfg.SMTP, extractAddress(m.cfg.From), recipients, msg); err != nil {
		// A failed send should not consume the quiet period.
		m.mu.Lock()
		m.lastSent = time.Time{}
		m.mu.Unlock()
		m.logger.Warn("send cooldown alert", "error", err, "to", m.cfg.To)
		return
	}

	m.logger.Info("cooldown alert sent", "to", m.cfg.To, "failures", info.Failures)
}

// cooldownBody builds the alert mail body in markdown. ComposeMessage
// renders it to both text/plain and text/html.
func cooldownBody(info ferry.CooldownInfo) string {
	bridge := "responding"
	if !info.BridgeUp {
		bridge = "NOT responding. Is the world loaded?"
	}

	return fmt.Sprintf(`**%d transfer cycles in a row have failed.** The loop pauses after each streak and keeps retrying on its own; the last cycle ended with `+"`%s`"+` at %s.

Bridge status: %s

Worth checking:

- the charger and store are still on the sides recorded during setup
- the store is not full or jammed
- the tracked item is still in the charger's reference slot

ferryd keeps running. This mail repeats at most once per quiet period.`,
		info.Failures, info.Outcome, info.At.Format(time.RFC1123), bridge)
}
