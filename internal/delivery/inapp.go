/**
 * @description
 * In-app notification channel: writes a row to the notification queue table
 * that the frontend dropdown polls. No external transport involved, so the
 * only failure mode is the database write itself.
 */

package delivery

import (
	"context"
	"fmt"

	"github.com/investorcenter/notification-service/internal/models"
)

// InAppStore persists in-app notification rows.
type InAppStore interface {
	CreateInAppNotification(ctx context.Context, n *models.InAppNotification) error
}

// InAppChannel delivers notifications to the in-app dropdown.
type InAppChannel struct {
	store InAppStore
}

// NewInAppChannel creates the in-app channel.
func NewInAppChannel(store InAppStore) *InAppChannel {
	return &InAppChannel{store: store}
}

// Name identifies the channel in logs and error text.
func (c *InAppChannel) Name() string { return "in_app" }

// Enabled reports whether the rule opted into in-app delivery.
func (c *InAppChannel) Enabled(rule *models.AlertRule) bool { return rule.NotifyInApp }

// Send inserts the notification row.
func (c *InAppChannel) Send(ctx context.Context, rule *models.AlertRule, alertLog *models.AlertLog, quote models.Quote) (bool, error) {
	n := &models.InAppNotification{
		UserID:     rule.UserID,
		AlertLogID: &alertLog.ID,
		Type:       "alert",
		Title:      notificationTitle(rule),
		Message:    describeCondition(rule, quote),
		Data:       inAppPayload(rule, quote),
	}
	if err := c.store.CreateInAppNotification(ctx, n); err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}
