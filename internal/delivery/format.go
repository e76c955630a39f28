/**
 * @description
 * Human-readable formatting for alert notifications: type labels, condition
 * descriptions, volume abbreviation, and the HTML email bodies.
 */

package delivery

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"

	"github.com/investorcenter/notification-service/internal/models"
)

// alertTypeLabel maps an alert_type value to the phrasing used in subjects
// and notification titles.
func alertTypeLabel(alertType string) string {
	switch alertType {
	case models.AlertTypePriceAbove:
		return "Price Above"
	case models.AlertTypePriceBelow:
		return "Price Below"
	case models.AlertTypePriceChangePct:
		return "Price Change"
	case models.AlertTypeVolumeAbove:
		return "Volume Above"
	case models.AlertTypeVolumeBelow:
		return "Volume Below"
	case models.AlertTypeVolumeSpike:
		return "Volume Spike"
	default:
		return "Alert"
	}
}

// describeCondition renders the rule's condition as one sentence fragment,
// e.g. "price rose above $150.00" or "volume spiked to 3.0x average".
func describeCondition(rule *models.AlertRule, quote models.Quote) string {
	cond, err := models.ParseCondition(rule.AlertType, rule.Conditions)
	if err != nil {
		return fmt.Sprintf("%s condition met", alertTypeLabel(rule.AlertType))
	}

	switch c := cond.(type) {
	case models.ThresholdCondition:
		switch rule.AlertType {
		case models.AlertTypePriceAbove:
			return fmt.Sprintf("price rose above $%s (now $%s)", formatPrice(c.Threshold), formatPrice(quote.Price))
		case models.AlertTypePriceBelow:
			return fmt.Sprintf("price fell below $%s (now $%s)", formatPrice(c.Threshold), formatPrice(quote.Price))
		case models.AlertTypeVolumeAbove:
			return fmt.Sprintf("volume exceeded %s (now %s)", formatVolume(int64(c.Threshold)), formatVolume(quote.Volume))
		case models.AlertTypeVolumeBelow:
			return fmt.Sprintf("volume dropped below %s (now %s)", formatVolume(int64(c.Threshold)), formatVolume(quote.Volume))
		}
	case models.PriceChangeCondition:
		return fmt.Sprintf("price moved %.2f%% (threshold %.2f%% %s)", quote.ChangePct, c.PercentChange, c.Direction)
	case models.VolumeSpikeCondition:
		return fmt.Sprintf("volume spiked to %s, %.1fx the average", formatVolume(quote.Volume), c.VolumeMultiplier)
	}
	return fmt.Sprintf("%s condition met", alertTypeLabel(rule.AlertType))
}

// formatPrice renders a price with two decimals and no currency symbol.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatVolume abbreviates share counts: 1234 -> "1.2K", 3400000 -> "3.4M".
func formatVolume(v int64) string {
	f := float64(v)
	switch {
	case f >= 1e9:
		return fmt.Sprintf("%.1fB", f/1e9)
	case f >= 1e6:
		return fmt.Sprintf("%.1fM", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%.1fK", f/1e3)
	default:
		return strconv.FormatInt(v, 10)
	}
}

// notificationTitle is the short line shown in the in-app dropdown and email
// subject, e.g. "AAPL: Price Above".
func notificationTitle(rule *models.AlertRule) string {
	return fmt.Sprintf("%s: %s", rule.Symbol, alertTypeLabel(rule.AlertType))
}

// alertEmailBody renders the HTML body for a triggered alert.
func alertEmailBody(rule *models.AlertRule, quote models.Quote, frontendURL string) string {
	name := rule.Name
	if name == "" {
		name = notificationTitle(rule)
	}

	staleNote := ""
	if !quote.Updated {
		staleNote = `<p style="color:#888;font-size:12px;">Note: this quote was carried forward from an earlier cycle.</p>`
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;color:#1a1a1a;max-width:560px;margin:0 auto;">
  <h2 style="color:#0d6efd;">%s</h2>
  <p>Your alert <strong>%s</strong> for <strong>%s</strong> just triggered: %s.</p>
  <table style="border-collapse:collapse;width:100%%;">
    <tr><td style="padding:6px 12px;border:1px solid #ddd;">Price</td><td style="padding:6px 12px;border:1px solid #ddd;">$%s</td></tr>
    <tr><td style="padding:6px 12px;border:1px solid #ddd;">Change</td><td style="padding:6px 12px;border:1px solid #ddd;">%.2f%%</td></tr>
    <tr><td style="padding:6px 12px;border:1px solid #ddd;">Volume</td><td style="padding:6px 12px;border:1px solid #ddd;">%s</td></tr>
  </table>
  %s
  <p><a href="%s/stocks/%s" style="color:#0d6efd;">View %s on InvestorCenter</a></p>
  <p style="color:#888;font-size:12px;">You are receiving this because you created this alert. Manage alerts in your account settings.</p>
</body>
</html>`,
		html.EscapeString(notificationTitle(rule)),
		html.EscapeString(name),
		html.EscapeString(rule.Symbol),
		html.EscapeString(describeCondition(rule, quote)),
		formatPrice(quote.Price),
		quote.ChangePct,
		formatVolume(quote.Volume),
		staleNote,
		frontendURL,
		html.EscapeString(rule.Symbol),
		html.EscapeString(rule.Symbol),
	)
}

// canaryEmailBody renders the body for the synthetic delivery probe.
func canaryEmailBody() string {
	return `<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;color:#1a1a1a;">
  <h2>Canary: email delivery check</h2>
  <p>This is a synthetic test message from the notification service. If you can read this, SMTP delivery is working end to end.</p>
</body>
</html>`
}

// inAppPayload builds the Data blob stored with an in-app notification.
func inAppPayload(rule *models.AlertRule, quote models.Quote) json.RawMessage {
	data, err := json.Marshal(map[string]interface{}{
		"symbol":     rule.Symbol,
		"alert_type": rule.AlertType,
		"price":      quote.Price,
		"change_pct": quote.ChangePct,
		"volume":     quote.Volume,
	})
	if err != nil {
		return nil
	}
	return data
}
