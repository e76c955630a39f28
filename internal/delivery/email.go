/**
 * @description
 * Email notification channel.
 * Resolves the recipient (preferences override, account email fallback),
 * honors the per-user email toggle and quiet hours, and sends HTML mail over
 * authenticated SMTP. Header values derived from user data are stripped of
 * CR/LF before use so a crafted rule name cannot inject extra headers.
 *
 * @dependencies
 * - internal/store: preferences and recipient lookup
 * - standard "net/smtp": the only mail dependency; the message format is a
 *   handful of fixed headers, not worth a templating library
 */

package delivery

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/models"
)

// PrefStore resolves per-user delivery settings and recipient addresses.
type PrefStore interface {
	EmailSettings(ctx context.Context, userID uuid.UUID) (*models.NotificationPreferences, error)
	UserEmail(ctx context.Context, userID uuid.UUID) (*models.UserEmail, error)
}

// sendFunc matches smtp.SendMail; swapped out in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel delivers alert notifications over SMTP.
type EmailChannel struct {
	cfg         config.SMTP
	frontendURL string
	prefs       PrefStore
	send        sendFunc
	now         func() time.Time
}

// NewEmailChannel creates the email channel. prefs may not be nil.
func NewEmailChannel(cfg config.SMTP, frontendURL string, prefs PrefStore) *EmailChannel {
	return &EmailChannel{
		cfg:         cfg,
		frontendURL: frontendURL,
		prefs:       prefs,
		send:        smtp.SendMail,
		now:         time.Now,
	}
}

// Name identifies the channel in logs and error text.
func (c *EmailChannel) Name() string { return "email" }

// Enabled reports whether the rule opted into email delivery.
func (c *EmailChannel) Enabled(rule *models.AlertRule) bool { return rule.NotifyEmail }

// Send delivers one alert email. Returns delivered=false with a nil error
// when the message is deliberately suppressed (email disabled, quiet hours,
// SMTP unconfigured); those are not failures.
func (c *EmailChannel) Send(ctx context.Context, rule *models.AlertRule, alertLog *models.AlertLog, quote models.Quote) (bool, error) {
	if c.cfg.Host == "" {
		logger.Warn("Email channel: SMTP not configured — skipping send for rule %s", rule.ID)
		return false, nil
	}

	prefs, err := c.prefs.EmailSettings(ctx, rule.UserID)
	if err != nil {
		return false, fmt.Errorf("load preferences: %w", err)
	}
	if prefs != nil {
		if !prefs.EmailEnabled {
			return false, nil
		}
		if c.inQuietHours(prefs) {
			logger.Info("Email channel: suppressing alert %s for user %s (quiet hours)", alertLog.ID, rule.UserID)
			return false, nil
		}
	}

	to, err := c.recipient(ctx, rule.UserID, prefs)
	if err != nil {
		return false, err
	}

	subject := fmt.Sprintf("%s Alert Triggered", notificationTitle(rule))
	msg := c.buildMessage(to, subject, alertEmailBody(rule, quote, c.frontendURL))

	addr := c.cfg.Host + ":" + c.cfg.Port
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	if err := c.send(addr, auth, c.cfg.FromEmail, []string{to}, msg); err != nil {
		return false, fmt.Errorf("smtp send: %w", err)
	}
	return true, nil
}

// SendTest delivers the canary probe message, bypassing preferences and quiet
// hours; the probe exists to exercise SMTP itself.
func (c *EmailChannel) SendTest(ctx context.Context, to string) error {
	if c.cfg.Host == "" {
		return fmt.Errorf("smtp not configured")
	}
	msg := c.buildMessage(to, "Canary: email delivery check", canaryEmailBody())
	addr := c.cfg.Host + ":" + c.cfg.Port
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	return c.send(addr, auth, c.cfg.FromEmail, []string{to}, msg)
}

// recipient picks the preference address when set, else the account email.
func (c *EmailChannel) recipient(ctx context.Context, userID uuid.UUID, prefs *models.NotificationPreferences) (string, error) {
	if prefs != nil && prefs.EmailAddress != nil && *prefs.EmailAddress != "" {
		return *prefs.EmailAddress, nil
	}
	u, err := c.prefs.UserEmail(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve recipient: %w", err)
	}
	if u.Email == "" {
		return "", fmt.Errorf("user %s has no email address", userID)
	}
	return u.Email, nil
}

// buildMessage assembles the raw RFC 822 message bytes.
func (c *EmailChannel) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + sanitizeHeader(c.cfg.FromName) + " <" + sanitizeHeader(c.cfg.FromEmail) + ">\r\n")
	b.WriteString("To: " + sanitizeHeader(to) + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// sanitizeHeader strips CR and LF so user-derived values cannot terminate a
// header and inject new ones.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", "")
	return v
}

// inQuietHours reports whether the user's local time falls inside the
// configured quiet window. Ranges may cross midnight ("22:00"–"07:00").
// Unparseable settings fail open: better a late email than a silent drop.
func (c *EmailChannel) inQuietHours(prefs *models.NotificationPreferences) bool {
	if !prefs.QuietHoursEnabled || prefs.QuietHoursStart == "" || prefs.QuietHoursEnd == "" {
		return false
	}

	loc, err := time.LoadLocation(prefs.QuietHoursTimezone)
	if err != nil {
		loc = time.UTC
	}
	now := c.now().In(loc)
	nowMin := now.Hour()*60 + now.Minute()

	start, ok1 := parseClock(prefs.QuietHoursStart)
	end, ok2 := parseClock(prefs.QuietHoursEnd)
	if !ok1 || !ok2 || start == end {
		return false
	}

	if start < end {
		return nowMin >= start && nowMin < end
	}
	// Overnight window, e.g. 22:00–07:00.
	return nowMin >= start || nowMin < end
}

// parseClock parses "HH:MM" or "HH:MM:SS" into minutes since midnight.
func parseClock(v string) (int, bool) {
	parts := strings.Split(v, ":")
	if len(parts) < 2 {
		return 0, false
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
