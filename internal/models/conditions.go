/**
 * @description
 * Typed alert condition parameters.
 * The 'conditions' column is an open JSON blob keyed by alert_type; it is
 * decoded exactly once into one of the variants below when a rule is loaded,
 * never re-parsed during evaluation.
 *
 * @dependencies
 * - standard "encoding/json"
 */

package models

import (
	"encoding/json"
	"fmt"
)

// Alert type identifiers, matching the alert_rules.alert_type column.
const (
	AlertTypePriceAbove     = "price_above"
	AlertTypePriceBelow     = "price_below"
	AlertTypePriceChangePct = "price_change_pct"
	AlertTypeVolumeAbove    = "volume_above"
	AlertTypeVolumeBelow    = "volume_below"
	AlertTypeVolumeSpike    = "volume_spike"
)

// Percent-change directions for AlertTypePriceChangePct.
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionEither = "either"
)

// Condition is the decoded form of an AlertRule's conditions blob. Exactly one
// variant applies per alert_type.
type Condition interface {
	condition()
}

// ThresholdCondition covers price_above, price_below, volume_above, volume_below.
type ThresholdCondition struct {
	Threshold float64 `json:"threshold"`
}

// PriceChangeCondition covers price_change_pct. Direction makes the comparison
// sign-aware: "up" means moved up by at least PercentChange, "down" means
// moved down by at least PercentChange, "either" compares magnitude.
type PriceChangeCondition struct {
	PercentChange float64 `json:"percent_change"`
	Direction     string  `json:"direction"`
}

// VolumeSpikeCondition covers volume_spike: current volume vs a multiple of
// the baseline average carried on the quote.
type VolumeSpikeCondition struct {
	VolumeMultiplier float64 `json:"volume_multiplier"`
}

func (ThresholdCondition) condition()   {}
func (PriceChangeCondition) condition() {}
func (VolumeSpikeCondition) condition() {}

// ParseCondition decodes a conditions blob into the variant for alertType.
func ParseCondition(alertType string, raw json.RawMessage) (Condition, error) {
	switch alertType {
	case AlertTypePriceAbove, AlertTypePriceBelow, AlertTypeVolumeAbove, AlertTypeVolumeBelow:
		var c ThresholdCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse %s conditions: %w", alertType, err)
		}
		return c, nil
	case AlertTypePriceChangePct:
		var c PriceChangeCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse %s conditions: %w", alertType, err)
		}
		if c.Direction == "" {
			c.Direction = DirectionEither
		}
		return c, nil
	case AlertTypeVolumeSpike:
		var c VolumeSpikeCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse %s conditions: %w", alertType, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported alert type: %s", alertType)
	}
}

// ValidAlertType reports whether the pipeline knows how to evaluate alertType.
func ValidAlertType(alertType string) bool {
	switch alertType {
	case AlertTypePriceAbove, AlertTypePriceBelow, AlertTypePriceChangePct,
		AlertTypeVolumeAbove, AlertTypeVolumeBelow, AlertTypeVolumeSpike:
		return true
	}
	return false
}

// ValidFrequency reports whether frequency is one of the supported values.
func ValidFrequency(frequency string) bool {
	return frequency == FrequencyOnce || frequency == FrequencyDaily || frequency == FrequencyAlways
}
