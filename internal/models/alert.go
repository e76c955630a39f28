/**
 * @description
 * Alert rule and alert log database models.
 * Maps to the 'alert_rules', 'alert_logs', 'notification_queue',
 * 'watch_list_items', and 'notification_preferences' tables in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Alert frequency values. Anything else is treated as fail-closed by the
// frequency gate.
const (
	FrequencyOnce   = "once"
	FrequencyDaily  = "daily"
	FrequencyAlways = "always"
)

// AlertRule represents a user-created standing watch condition.
//
// Frequency controls how often a rule can re-trigger:
//   - "once"   — triggers once, then is deactivated (trigger_count never exceeds 1)
//   - "daily"  — at most once per 24 hours
//   - "always" — on every evaluation cycle the condition holds; there is no
//     cooldown, so a rule whose condition stays true fires on every batch.
//     Surface this clearly to users configuring "always".
type AlertRule struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	WatchListID *uuid.UUID      `gorm:"type:uuid;column:watch_list_id" json:"watch_list_id,omitempty"`
	Symbol      string          `gorm:"index;not null" json:"symbol"`
	Name        string          `json:"name"`
	AlertType   string          `gorm:"column:alert_type;not null" json:"alert_type"`
	Conditions  json.RawMessage `gorm:"type:jsonb" json:"conditions"`
	Frequency   string          `gorm:"not null;default:once" json:"frequency"`
	NotifyEmail bool            `gorm:"column:notify_email;default:true" json:"notify_email"`
	NotifyInApp bool            `gorm:"column:notify_in_app;default:true" json:"notify_in_app"`
	IsActive    bool            `gorm:"column:is_active;default:true" json:"is_active"`

	LastTriggeredAt *time.Time `gorm:"column:last_triggered_at" json:"last_triggered_at,omitempty"`
	TriggerCount    int        `gorm:"column:trigger_count;default:0" json:"trigger_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by AlertRule to `alert_rules`
func (AlertRule) TableName() string {
	return "alert_rules"
}

// BeforeCreate ensures UUID is generated if not present
func (r *AlertRule) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// AlertLog is the immutable record of a single rule firing. Only the
// is_read/is_dismissed flags (owned by the end user) and the delivery outcome
// fields are ever updated after insert.
type AlertLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	AlertRuleID uuid.UUID `gorm:"type:uuid;column:alert_rule_id;index;not null" json:"alert_rule_id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Symbol      string    `gorm:"not null" json:"symbol"`
	AlertType   string    `gorm:"column:alert_type" json:"alert_type"`
	// ConditionMet captures the rule's condition verbatim at trigger time for audit.
	ConditionMet json.RawMessage `gorm:"column:condition_met;type:jsonb" json:"condition_met"`
	// MarketData is the quote snapshot that caused the trigger.
	MarketData json.RawMessage `gorm:"column:market_data;type:jsonb" json:"market_data"`

	NotificationSent  bool   `gorm:"column:notification_sent;default:false" json:"notification_sent"`
	NotificationError string `gorm:"column:notification_error" json:"notification_error,omitempty"`

	IsRead      bool      `gorm:"column:is_read;default:false" json:"is_read"`
	IsDismissed bool      `gorm:"column:is_dismissed;default:false" json:"is_dismissed"`
	TriggeredAt time.Time `gorm:"column:triggered_at;autoCreateTime" json:"triggered_at"`
}

// TableName overrides the table name used by AlertLog to `alert_logs`
func (AlertLog) TableName() string {
	return "alert_logs"
}

// BeforeCreate ensures UUID is generated if not present
func (l *AlertLog) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}

// InAppNotification is a row the frontend dropdown polls for.
type InAppNotification struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	AlertLogID *uuid.UUID      `gorm:"type:uuid;column:alert_log_id" json:"alert_log_id,omitempty"`
	Type       string          `gorm:"not null" json:"type"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Data       json.RawMessage `gorm:"type:jsonb" json:"data"`
	Read       bool            `gorm:"default:false" json:"read"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName overrides the table name used by InAppNotification to `notification_queue`
func (InAppNotification) TableName() string {
	return "notification_queue"
}

// BeforeCreate ensures UUID is generated if not present
func (n *InAppNotification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}

// WatchListItem is a lookup-only projection of the watch list tables; the
// pipeline only ever checks symbol membership at rule-creation time.
type WatchListItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WatchListID uuid.UUID `gorm:"type:uuid;column:watch_list_id;index" json:"watch_list_id"`
	Symbol      string    `json:"symbol"`
}

// TableName overrides the table name used by WatchListItem to `watch_list_items`
func (WatchListItem) TableName() string {
	return "watch_list_items"
}

// NotificationPreferences holds per-user email delivery settings.
type NotificationPreferences struct {
	UserID             uuid.UUID `gorm:"type:uuid;primary_key" json:"user_id"`
	EmailEnabled       bool      `gorm:"column:email_enabled;default:true" json:"email_enabled"`
	EmailAddress       *string   `gorm:"column:email_address" json:"email_address,omitempty"`
	QuietHoursEnabled  bool      `gorm:"column:quiet_hours_enabled;default:false" json:"quiet_hours_enabled"`
	QuietHoursStart    string    `gorm:"column:quiet_hours_start" json:"quiet_hours_start"`       // HH:MM:SS
	QuietHoursEnd      string    `gorm:"column:quiet_hours_end" json:"quiet_hours_end"`           // HH:MM:SS
	QuietHoursTimezone string    `gorm:"column:quiet_hours_timezone" json:"quiet_hours_timezone"` // e.g. "America/New_York"
}

// TableName overrides the table name used by NotificationPreferences
func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

// UserEmail is the minimal user projection needed for email delivery.
type UserEmail struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}
