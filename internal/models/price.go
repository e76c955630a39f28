/**
 * @description
 * Wire types for the price-update stream.
 * Must match the batch shape published by the price publisher:
 * {"timestamp": <unix-seconds>, "source": "<string>", "symbols": {"AAPL": {...}}}
 *
 * @dependencies
 * - standard "encoding/json" (callers decode these)
 */

package models

// Quote is a momentary market snapshot for one symbol.
type Quote struct {
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	ChangePct float64 `json:"change_pct"`
	// AvgVolume is the trailing-average baseline used by volume_spike rules.
	// Zero means the publisher had no baseline this cycle; spike conditions
	// are skipped rather than guessed.
	AvgVolume float64 `json:"avg_volume,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	// Updated distinguishes a fresh tick from a carried-forward stale value.
	Updated bool `json:"updated"`
}

// PriceUpdateBatch is the unit of work delivered by the queue: one timestamped
// snapshot of current quotes for many symbols.
type PriceUpdateBatch struct {
	Timestamp int64            `json:"timestamp"`
	Source    string           `json:"source"`
	Symbols   map[string]Quote `json:"symbols"`
}
