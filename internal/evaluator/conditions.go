/**
 * @description
 * Condition evaluation against a single quote. Pure functions: no storage, no
 * clock, no side effects beyond the returned verdict.
 */

package evaluator

import (
	"fmt"
	"math"

	"github.com/investorcenter/notification-service/internal/models"
)

// evalCondition checks a decoded condition against a quote.
//
// Threshold comparisons are inclusive (>= / <=) so a quote landing exactly on
// the configured value triggers. volume_spike with no baseline on the quote
// evaluates to false without error; the publisher simply had nothing to
// compare against this cycle.
func evalCondition(alertType string, cond models.Condition, quote models.Quote) (bool, error) {
	switch alertType {
	case models.AlertTypePriceAbove:
		c, ok := cond.(models.ThresholdCondition)
		if !ok {
			return false, fmt.Errorf("condition type mismatch for %s", alertType)
		}
		return quote.Price >= c.Threshold, nil

	case models.AlertTypePriceBelow:
		c, ok := cond.(models.ThresholdCondition)
		if !ok {
			return false, fmt.Errorf("condition type mismatch for %s", alertType)
		}
		return quote.Price <= c.Threshold, nil

	case models.AlertTypePriceChangePct:
		c, ok := cond.(models.PriceChangeCondition)
		if !ok {
			return false, fmt.Errorf("condition type mismatch for %s", alertType)
		}
		switch c.Direction {
		case models.DirectionUp:
			return quote.ChangePct >= c.PercentChange, nil
		case models.DirectionDown:
			return quote.ChangePct <= -c.PercentChange, nil
		case models.DirectionEither:
			return math.Abs(quote.ChangePct) >= c.PercentChange, nil
		default:
			return false, fmt.Errorf("unknown direction: %s", c.Direction)
		}

	case models.AlertTypeVolumeAbove:
		c, ok := cond.(models.ThresholdCondition)
		if !ok {
			return false, fmt.Errorf("condition type mismatch for %s", alertType)
		}
		return float64(quote.Volume) >= c.Threshold, nil

	case models.AlertTypeVolumeBelow:
		c, ok := cond.(models.ThresholdCondition)
		if !ok {
			return false, fmt.Errorf("condition type mismatch for %s", alertType)
		}
		return float64(quote.Volume) <= c.Threshold, nil

	case models.AlertTypeVolumeSpike:
		c, ok := cond.(models.VolumeSpikeCondition)
		if !ok {
			return false, fmt.Errorf("condition type mismatch for %s", alertType)
		}
		if quote.AvgVolume <= 0 {
			// No baseline this cycle; skip rather than guess.
			return false, nil
		}
		return float64(quote.Volume) >= quote.AvgVolume*c.VolumeMultiplier, nil

	default:
		return false, fmt.Errorf("unsupported alert type: %s", alertType)
	}
}
