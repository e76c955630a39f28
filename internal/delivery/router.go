/**
 * @description
 * Delivery router: fans a triggered alert out to every channel the rule opted
 * into and records the combined outcome on the alert log. Delivery failures
 * are terminal for the notification, never for the trigger — the alert log
 * row already exists and keeps the failure text for the user to see.
 */

package delivery

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/models"
)

// Channel is one notification transport. Send returns delivered=false with a
// nil error for deliberate suppression (user settings, quiet hours); that is
// distinct from a transport failure.
type Channel interface {
	Name() string
	Enabled(rule *models.AlertRule) bool
	Send(ctx context.Context, rule *models.AlertRule, alertLog *models.AlertLog, quote models.Quote) (bool, error)
}

// OutcomeStore records the delivery result on the alert log.
type OutcomeStore interface {
	SetDeliveryOutcome(ctx context.Context, logID uuid.UUID, sent bool, errText string) error
}

// Router implements evaluator.Deliverer over a set of channels.
type Router struct {
	store    OutcomeStore
	channels []Channel
}

// NewRouter creates a router over the given channels, tried in order.
func NewRouter(store OutcomeStore, channels ...Channel) *Router {
	return &Router{store: store, channels: channels}
}

// Deliver sends the alert through every enabled channel and records the
// outcome. notification_sent is true when at least one channel delivered and
// none failed; failure text from each failing channel lands in
// notification_error.
func (r *Router) Deliver(ctx context.Context, rule *models.AlertRule, alertLog *models.AlertLog, quote models.Quote) {
	var (
		attempted int
		delivered int
		failures  []string
	)

	for _, ch := range r.channels {
		if !ch.Enabled(rule) {
			continue
		}
		attempted++

		ok, err := ch.Send(ctx, rule, alertLog, quote)
		if err != nil {
			logger.Error("Delivery: %s channel failed for alert %s: %v", ch.Name(), alertLog.ID, err)
			failures = append(failures, ch.Name()+": "+err.Error())
			continue
		}
		if ok {
			delivered++
		}
	}

	if attempted == 0 {
		return
	}

	sent := delivered > 0 && len(failures) == 0
	errText := strings.Join(failures, "; ")
	if err := r.store.SetDeliveryOutcome(ctx, alertLog.ID, sent, errText); err != nil {
		logger.Error("Delivery: recording outcome for alert %s failed: %v", alertLog.ID, err)
	}
}
