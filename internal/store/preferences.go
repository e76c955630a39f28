/**
 * @description
 * Per-user notification settings and recipient lookup.
 * Preferences are optional: a user with no row gets the defaults (email
 * enabled, no quiet hours, account email as recipient).
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/models"
	"gorm.io/gorm"
)

// EmailSettings returns the user's notification preferences, or nil when the
// user has never customized them.
func (s *Store) EmailSettings(ctx context.Context, userID uuid.UUID) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query notification preferences: %w", err)
	}
	return &prefs, nil
}

// UserEmail returns the account email and display name for a user.
func (s *Store) UserEmail(ctx context.Context, userID uuid.UUID) (*models.UserEmail, error) {
	var u models.UserEmail
	err := s.db.WithContext(ctx).
		Table("users").
		Select("email", "full_name").
		Where("id = ?", userID).
		First(&u).Error
	if err != nil {
		return nil, fmt.Errorf("query user email: %w", err)
	}
	return &u, nil
}
