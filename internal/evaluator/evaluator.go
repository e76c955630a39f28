/**
 * @description
 * Rule evaluation over price-update batches.
 * One batch in, zero or more triggered alert logs out. Rules are loaded once
 * per batch and grouped by symbol, so evaluation touches each distinct symbol
 * in the batch exactly once no matter how many rules watch it.
 *
 * @dependencies
 * - internal/models: wire and database types
 * - internal/logger
 *
 * @notes
 * - A rule-loading failure aborts the whole batch with an error so the queue
 *   redelivers it; per-rule failures are logged and skipped so one bad row
 *   cannot starve every other rule.
 * - Redelivered batches are harmless: the frequency claim in storage is
 *   conditional, so a rule that already fired for this window loses the claim
 *   and no duplicate log or notification is produced.
 */

package evaluator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/investorcenter/notification-service/internal/logger"
	"github.com/investorcenter/notification-service/internal/models"
)

// RuleStore is the storage surface evaluation needs.
type RuleStore interface {
	ActiveRules(ctx context.Context) ([]models.AlertRule, error)
	ClaimTrigger(ctx context.Context, rule *models.AlertRule) (bool, error)
	CreateAlertLog(ctx context.Context, alertLog *models.AlertLog) error
}

// Deliverer sends notifications for a freshly created alert log. Delivery is
// best-effort: implementations record their own outcome and never return the
// failure to the evaluator.
type Deliverer interface {
	Deliver(ctx context.Context, rule *models.AlertRule, alertLog *models.AlertLog, quote models.Quote)
}

// Evaluator consumes price-update batches and fires matching alert rules.
type Evaluator struct {
	store     RuleStore
	deliverer Deliverer
}

// New creates an Evaluator. deliverer may be nil, in which case triggers are
// logged to storage but nothing is sent.
func New(store RuleStore, deliverer Deliverer) *Evaluator {
	return &Evaluator{store: store, deliverer: deliverer}
}

// symbolRule pairs a rule with its condition, decoded once at load time.
type symbolRule struct {
	rule models.AlertRule
	cond models.Condition
}

// HandlePriceUpdate processes one batch payload. Returns an error only when
// the batch should be redelivered (rule loading failed); unparseable payloads
// are dropped because a retry can never fix them.
func (e *Evaluator) HandlePriceUpdate(ctx context.Context, payload []byte) error {
	// A batch in flight runs to completion: shutdown cancels the receive loop,
	// not the evaluation, so store writes never fail mid-batch with
	// context.Canceled while the worker drains.
	ctx = context.WithoutCancel(ctx)

	var batch models.PriceUpdateBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		logger.Error("Evaluator: dropping unparseable batch: %v", err)
		return nil
	}
	if len(batch.Symbols) == 0 {
		return nil
	}

	rules, err := e.store.ActiveRules(ctx)
	if err != nil {
		// Abort so the queue redelivers; evaluating against no rules would
		// silently swallow the batch.
		return fmt.Errorf("load active rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	bySymbol := groupBySymbol(rules)

	triggered := 0
	for symbol, quote := range batch.Symbols {
		matched, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		for _, sr := range matched {
			if e.evaluateRule(ctx, sr, quote, &batch) {
				triggered++
			}
		}
	}

	if triggered > 0 {
		logger.Info("Evaluator: batch from %s (ts %d) triggered %d alert(s)",
			batch.Source, batch.Timestamp, triggered)
	}
	return nil
}

// groupBySymbol decodes each rule's conditions once and indexes the result by
// symbol. Rules with undecodable conditions are logged and left out.
func groupBySymbol(rules []models.AlertRule) map[string][]symbolRule {
	out := make(map[string][]symbolRule)
	for _, rule := range rules {
		cond, err := models.ParseCondition(rule.AlertType, rule.Conditions)
		if err != nil {
			logger.Warn("Evaluator: skipping rule %s: %v", rule.ID, err)
			continue
		}
		out[rule.Symbol] = append(out[rule.Symbol], symbolRule{rule: rule, cond: cond})
	}
	return out
}

// evaluateRule runs one rule against one quote. Returns true if the rule
// actually fired (claim won, log written).
func (e *Evaluator) evaluateRule(ctx context.Context, sr symbolRule, quote models.Quote, batch *models.PriceUpdateBatch) bool {
	rule := sr.rule

	met, err := evalCondition(rule.AlertType, sr.cond, quote)
	if err != nil {
		logger.Warn("Evaluator: rule %s evaluation failed: %v", rule.ID, err)
		return false
	}
	if !met {
		return false
	}

	if !ShouldTrigger(&rule) {
		return false
	}

	claimed, err := e.store.ClaimTrigger(ctx, &rule)
	if err != nil {
		logger.Error("Evaluator: trigger claim for rule %s failed: %v", rule.ID, err)
		return false
	}
	if !claimed {
		// Another delivery of this batch (or a racing cycle) already fired it.
		return false
	}

	alertLog, err := e.buildAlertLog(&rule, quote, batch)
	if err != nil {
		logger.Error("Evaluator: building log for rule %s failed: %v", rule.ID, err)
		return false
	}
	if err := e.store.CreateAlertLog(ctx, alertLog); err != nil {
		// The claim is already recorded; losing the log row is an audit gap,
		// not a correctness problem, so don't fail the batch over it.
		logger.Error("Evaluator: persisting log for rule %s failed: %v", rule.ID, err)
		return false
	}

	logger.Info("Alert triggered: rule %s (%s %s) for user %s", rule.ID, rule.Symbol, rule.AlertType, rule.UserID)

	if e.deliverer != nil {
		e.deliverer.Deliver(ctx, &rule, alertLog, quote)
	}
	return true
}

// marketSnapshot is the quote context frozen into an alert log.
type marketSnapshot struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	ChangePct float64 `json:"change_pct"`
	AvgVolume float64 `json:"avg_volume,omitempty"`
	Updated   bool    `json:"updated"`
	BatchTime int64   `json:"batch_timestamp"`
	Source    string  `json:"source,omitempty"`
}

func (e *Evaluator) buildAlertLog(rule *models.AlertRule, quote models.Quote, batch *models.PriceUpdateBatch) (*models.AlertLog, error) {
	snapshot, err := json.Marshal(marketSnapshot{
		Symbol:    rule.Symbol,
		Price:     quote.Price,
		Volume:    quote.Volume,
		ChangePct: quote.ChangePct,
		AvgVolume: quote.AvgVolume,
		Updated:   quote.Updated,
		BatchTime: batch.Timestamp,
		Source:    batch.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal market snapshot: %w", err)
	}

	return &models.AlertLog{
		AlertRuleID:  rule.ID,
		UserID:       rule.UserID,
		Symbol:       rule.Symbol,
		AlertType:    rule.AlertType,
		ConditionMet: rule.Conditions,
		MarketData:   snapshot,
	}, nil
}
