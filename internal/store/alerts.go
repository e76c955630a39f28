/**
 * @description
 * Alert rule and alert log storage.
 * Owns the one consistency-critical operation of the pipeline: the atomic
 * trigger claim that applies the frequency predicate and the
 * last_triggered_at/trigger_count update in a single conditional UPDATE, so a
 * rapid double-delivery of the same batch can never fire a rule twice.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgx/v5/pgconn: Postgres error codes for bounded deadlock retry
 * - github.com/google/uuid
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Store wraps the Postgres handle for the alert tables.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an established gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping verifies storage reachability; used by the health aggregator.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ActiveRules returns every active alert rule. The evaluator groups these by
// symbol itself, so one query per batch is all the storage traffic evaluation
// needs.
func (s *Store) ActiveRules(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("query active alert rules: %w", err)
	}
	return rules, nil
}

// ClaimTrigger atomically claims a rule for firing. The WHERE clause
// re-applies the frequency predicate, so replays and racing deliveries lose
// the claim instead of double-firing:
//
//   - "once":   only if never triggered; also deactivates the rule, which
//     keeps trigger_count at 1 forever.
//   - "daily":  only if the last trigger was 24h or more ago (or never).
//   - "always": unconditional; such rules re-fire on every batch where the
//     condition holds.
//
// Returns true if this caller won the claim (a row was updated).
func (s *Store) ClaimTrigger(ctx context.Context, rule *models.AlertRule) (bool, error) {
	now := time.Now().UTC()

	q := s.db.WithContext(ctx).
		Model(&models.AlertRule{}).
		Where("id = ? AND is_active = ?", rule.ID, true)

	updates := map[string]interface{}{
		"last_triggered_at": now,
		"trigger_count":     gorm.Expr("trigger_count + 1"),
	}

	switch rule.Frequency {
	case models.FrequencyOnce:
		q = q.Where("last_triggered_at IS NULL")
		updates["is_active"] = false
	case models.FrequencyDaily:
		q = q.Where("last_triggered_at IS NULL OR last_triggered_at <= ?", now.Add(-24*time.Hour))
	case models.FrequencyAlways:
		// No cooldown predicate.
	default:
		return false, fmt.Errorf("unknown frequency: %s", rule.Frequency)
	}

	var affected int64
	err := withRetry(func() error {
		res := q.Updates(updates)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("claim alert trigger: %w", err)
	}

	return affected > 0, nil
}

// CreateAlertLog inserts the immutable trigger record.
func (s *Store) CreateAlertLog(ctx context.Context, alertLog *models.AlertLog) error {
	if err := s.db.WithContext(ctx).Create(alertLog).Error; err != nil {
		return fmt.Errorf("create alert log: %w", err)
	}
	return nil
}

// SetDeliveryOutcome records whether notifications for a trigger went out.
// Delivery is best-effort; this never touches the trigger fields themselves.
func (s *Store) SetDeliveryOutcome(ctx context.Context, logID uuid.UUID, sent bool, errText string) error {
	err := s.db.WithContext(ctx).
		Model(&models.AlertLog{}).
		Where("id = ?", logID).
		Updates(map[string]interface{}{
			"notification_sent":  sent,
			"notification_error": errText,
		}).Error
	if err != nil {
		return fmt.Errorf("update delivery outcome: %w", err)
	}
	return nil
}

// CreateInAppNotification inserts a row for the frontend dropdown.
func (s *Store) CreateInAppNotification(ctx context.Context, n *models.InAppNotification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create in-app notification: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// User-facing rule/log operations (alerts API)
// ---------------------------------------------------------------------------

// CreateRule persists a new alert rule.
func (s *Store) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("create alert rule: %w", err)
	}
	return nil
}

// RulesByUser lists a user's alert rules, newest first.
func (s *Store) RulesByUser(ctx context.Context, userID uuid.UUID) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// RuleByID fetches one rule scoped to its owner.
func (s *Store) RuleByID(ctx context.Context, id, userID uuid.UUID) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateRule applies a partial update to an owned rule.
func (s *Store) UpdateRule(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&models.AlertRule{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteRule removes an owned rule.
func (s *Store) DeleteRule(ctx context.Context, id, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.AlertRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LogsByUser lists a user's alert history, newest first.
func (s *Store) LogsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AlertLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.AlertLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("triggered_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// MarkLogRead flags an owned alert log as read.
func (s *Store) MarkLogRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.setLogFlag(ctx, id, userID, "is_read")
}

// MarkLogDismissed flags an owned alert log as dismissed.
func (s *Store) MarkLogDismissed(ctx context.Context, id, userID uuid.UUID) error {
	return s.setLogFlag(ctx, id, userID, "is_dismissed")
}

func (s *Store) setLogFlag(ctx context.Context, id, userID uuid.UUID, column string) error {
	res := s.db.WithContext(ctx).
		Model(&models.AlertLog{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update(column, true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// WatchListHasSymbol reports whether the symbol is currently an item of the
// watch list. Checked once at rule creation; the rule is not retroactively
// invalidated if the item is later removed.
func (s *Store) WatchListHasSymbol(ctx context.Context, watchListID uuid.UUID, symbol string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.WatchListItem{}).
		Where("watch_list_id = ? AND symbol = ?", watchListID, symbol).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check watch list membership: %w", err)
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// Retry helper
// ---------------------------------------------------------------------------

const maxRetries = 5

// withRetry retries fn on Postgres deadlock (40P01) and serialization (40001)
// failures with jittered backoff; all other errors return immediately.
// The driver is pgx/v5, so the match goes through errors.As against its
// PgError rather than a direct type assertion.
func withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001") {
			backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
			time.Sleep(backoff)
			continue
		}
		return err
	}
	return err
}
