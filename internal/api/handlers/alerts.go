/**
 * @description
 * User-facing alerts API: rule CRUD and alert history.
 * All routes require an authenticated user; every query is scoped to the
 * token's user id, so one user can never see or mutate another's rules.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/store
 */

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/api/middleware"
	"github.com/investorcenter/notification-service/internal/models"
	"gorm.io/gorm"
)

// AlertStore is the storage surface the alerts API needs.
type AlertStore interface {
	CreateRule(ctx context.Context, rule *models.AlertRule) error
	RulesByUser(ctx context.Context, userID uuid.UUID) ([]models.AlertRule, error)
	RuleByID(ctx context.Context, id, userID uuid.UUID) (*models.AlertRule, error)
	UpdateRule(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error
	DeleteRule(ctx context.Context, id, userID uuid.UUID) error
	LogsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AlertLog, error)
	MarkLogRead(ctx context.Context, id, userID uuid.UUID) error
	MarkLogDismissed(ctx context.Context, id, userID uuid.UUID) error
	WatchListHasSymbol(ctx context.Context, watchListID uuid.UUID, symbol string) (bool, error)
}

// AlertsHandler serves the rule CRUD and alert history routes.
type AlertsHandler struct {
	store AlertStore
}

// NewAlertsHandler creates the handler.
func NewAlertsHandler(store AlertStore) *AlertsHandler {
	return &AlertsHandler{store: store}
}

// createAlertRequest is the POST /alerts body.
type createAlertRequest struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	WatchListID *uuid.UUID      `json:"watch_list_id"`
	AlertType   string          `json:"alert_type"`
	Conditions  json.RawMessage `json:"conditions"`
	Frequency   string          `json:"frequency"`
	NotifyEmail *bool           `json:"notify_email"`
	NotifyInApp *bool           `json:"notify_in_app"`
}

// CreateAlert handles POST /alerts.
func (h *AlertsHandler) CreateAlert(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req createAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	rule, err := h.buildRule(c.Context(), userID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.store.CreateRule(c.Context(), rule); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create alert"})
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// buildRule validates the request and assembles the rule row.
func (h *AlertsHandler) buildRule(ctx context.Context, userID uuid.UUID, req *createAlertRequest) (*models.AlertRule, error) {
	if req.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if !models.ValidAlertType(req.AlertType) {
		return nil, fmt.Errorf("unsupported alert type: %s", req.AlertType)
	}
	if req.Frequency == "" {
		req.Frequency = models.FrequencyOnce
	}
	if !models.ValidFrequency(req.Frequency) {
		return nil, fmt.Errorf("unsupported frequency: %s", req.Frequency)
	}
	if _, err := models.ParseCondition(req.AlertType, req.Conditions); err != nil {
		return nil, err
	}

	// Watch list membership is validated once, here. Removing the symbol from
	// the watch list later does not deactivate the rule.
	if req.WatchListID != nil {
		ok, err := h.store.WatchListHasSymbol(ctx, *req.WatchListID, req.Symbol)
		if err != nil {
			return nil, errors.New("failed to verify watch list membership")
		}
		if !ok {
			return nil, fmt.Errorf("symbol %s is not on the given watch list", req.Symbol)
		}
	}

	rule := &models.AlertRule{
		UserID:      userID,
		WatchListID: req.WatchListID,
		Symbol:      req.Symbol,
		Name:        req.Name,
		AlertType:   req.AlertType,
		Conditions:  req.Conditions,
		Frequency:   req.Frequency,
		NotifyEmail: true,
		NotifyInApp: true,
		IsActive:    true,
	}
	if req.NotifyEmail != nil {
		rule.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifyInApp != nil {
		rule.NotifyInApp = *req.NotifyInApp
	}
	return rule, nil
}

// ListAlerts handles GET /alerts.
func (h *AlertsHandler) ListAlerts(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	rules, err := h.store.RulesByUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list alerts"})
	}
	return c.JSON(fiber.Map{"alerts": rules})
}

// GetAlert handles GET /alerts/:id.
func (h *AlertsHandler) GetAlert(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid alert id"})
	}

	rule, err := h.store.RuleByID(c.Context(), id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "alert not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load alert"})
	}
	return c.JSON(rule)
}

// updateAlertRequest is the PATCH /alerts/:id body; nil fields are unchanged.
type updateAlertRequest struct {
	Name        *string         `json:"name"`
	Conditions  json.RawMessage `json:"conditions"`
	Frequency   *string         `json:"frequency"`
	NotifyEmail *bool           `json:"notify_email"`
	NotifyInApp *bool           `json:"notify_in_app"`
	IsActive    *bool           `json:"is_active"`
}

// UpdateAlert handles PATCH /alerts/:id.
func (h *AlertsHandler) UpdateAlert(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid alert id"})
	}

	var req updateAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Frequency != nil {
		if !models.ValidFrequency(*req.Frequency) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported frequency"})
		}
		updates["frequency"] = *req.Frequency
	}
	if len(req.Conditions) > 0 {
		// Conditions must parse against the rule's existing alert type.
		rule, err := h.store.RuleByID(c.Context(), id, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "alert not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load alert"})
		}
		if _, err := models.ParseCondition(rule.AlertType, req.Conditions); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		updates["conditions"] = req.Conditions
	}
	if req.NotifyEmail != nil {
		updates["notify_email"] = *req.NotifyEmail
	}
	if req.NotifyInApp != nil {
		updates["notify_in_app"] = *req.NotifyInApp
	}
	if req.IsActive != nil {
		// Reactivation never clears last_triggered_at: a spent "once" rule
		// stays spent for its lifetime. Re-arming means creating a new rule.
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no fields to update"})
	}

	if err := h.store.UpdateRule(c.Context(), id, userID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "alert not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update alert"})
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

// DeleteAlert handles DELETE /alerts/:id.
func (h *AlertsHandler) DeleteAlert(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid alert id"})
	}

	if err := h.store.DeleteRule(c.Context(), id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "alert not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete alert"})
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// ListLogs handles GET /alerts/logs.
func (h *AlertsHandler) ListLogs(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	logs, err := h.store.LogsByUser(c.Context(), userID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list alert history"})
	}
	return c.JSON(fiber.Map{"logs": logs})
}

// MarkLogRead handles POST /alerts/logs/:id/read.
func (h *AlertsHandler) MarkLogRead(c *fiber.Ctx) error {
	return h.setLogFlag(c, h.store.MarkLogRead)
}

// MarkLogDismissed handles POST /alerts/logs/:id/dismiss.
func (h *AlertsHandler) MarkLogDismissed(c *fiber.Ctx) error {
	return h.setLogFlag(c, h.store.MarkLogDismissed)
}

func (h *AlertsHandler) setLogFlag(c *fiber.Ctx, apply func(ctx context.Context, id, userID uuid.UUID) error) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid log id"})
	}

	if err := apply(c.Context(), id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "alert log not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update alert log"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
