/**
 * @description
 * Frequency gate: decides whether a rule whose condition currently holds is
 * allowed to trigger again, based only on in-memory rule state. The database
 * claim re-checks the same predicate atomically, so this gate exists to avoid
 * pointless writes, not to guarantee exclusivity.
 */

package evaluator

import (
	"time"

	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/models"
)

// ShouldTrigger reports whether the rule's frequency setting permits a trigger
// right now. Unknown frequency values fail closed: the rule never fires, and
// a warning is logged so the bad row gets noticed.
func ShouldTrigger(rule *models.AlertRule) bool {
	switch rule.Frequency {
	case models.FrequencyOnce:
		return rule.LastTriggeredAt == nil
	case models.FrequencyDaily:
		if rule.LastTriggeredAt == nil {
			return true
		}
		return time.Since(*rule.LastTriggeredAt) >= 24*time.Hour
	case models.FrequencyAlways:
		// No cooldown at all; fires on every batch the condition holds.
		return true
	default:
		logger.Warn("Alert rule %s has unknown frequency %q — suppressing trigger", rule.ID, rule.Frequency)
		return false
	}
}
