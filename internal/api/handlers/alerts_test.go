package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/models"
	"gorm.io/gorm"
)

type fakeAlertStore struct {
	rules       map[uuid.UUID]*models.AlertRule
	logs        map[uuid.UUID]*models.AlertLog
	wlSymbols   map[string]bool
	lastUpdates map[string]interface{}
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{
		rules:     make(map[uuid.UUID]*models.AlertRule),
		logs:      make(map[uuid.UUID]*models.AlertLog),
		wlSymbols: make(map[string]bool),
	}
}

func (f *fakeAlertStore) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	rule.ID = uuid.New()
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeAlertStore) RulesByUser(ctx context.Context, userID uuid.UUID) ([]models.AlertRule, error) {
	var out []models.AlertRule
	for _, r := range f.rules {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) RuleByID(ctx context.Context, id, userID uuid.UUID) (*models.AlertRule, error) {
	r, ok := f.rules[id]
	if !ok || r.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeAlertStore) UpdateRule(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	if _, ok := f.rules[id]; !ok || f.rules[id].UserID != userID {
		return gorm.ErrRecordNotFound
	}
	f.lastUpdates = updates
	return nil
}

func (f *fakeAlertStore) DeleteRule(ctx context.Context, id, userID uuid.UUID) error {
	r, ok := f.rules[id]
	if !ok || r.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeAlertStore) LogsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AlertLog, error) {
	var out []models.AlertLog
	for _, l := range f.logs {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) MarkLogRead(ctx context.Context, id, userID uuid.UUID) error {
	l, ok := f.logs[id]
	if !ok || l.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	l.IsRead = true
	return nil
}

func (f *fakeAlertStore) MarkLogDismissed(ctx context.Context, id, userID uuid.UUID) error {
	l, ok := f.logs[id]
	if !ok || l.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	l.IsDismissed = true
	return nil
}

func (f *fakeAlertStore) WatchListHasSymbol(ctx context.Context, watchListID uuid.UUID, symbol string) (bool, error) {
	return f.wlSymbols[watchListID.String()+"/"+symbol], nil
}

// alertsApp registers the alert routes with a stub auth layer that injects
// the given user id.
func alertsApp(st AlertStore, userID uuid.UUID) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})

	h := NewAlertsHandler(st)
	app.Post("/alerts", h.CreateAlert)
	app.Get("/alerts", h.ListAlerts)
	app.Get("/alerts/logs", h.ListLogs)
	app.Post("/alerts/logs/:id/read", h.MarkLogRead)
	app.Post("/alerts/logs/:id/dismiss", h.MarkLogDismissed)
	app.Get("/alerts/:id", h.GetAlert)
	app.Patch("/alerts/:id", h.UpdateAlert)
	app.Delete("/alerts/:id", h.DeleteAlert)
	return app
}

func TestCreateAlertValid(t *testing.T) {
	st := newFakeAlertStore()
	userID := uuid.New()
	app := alertsApp(st, userID)

	req := httptest.NewRequest("POST", "/alerts",
		strings.NewReader(`{"symbol":"AAPL","alert_type":"price_above","conditions":{"threshold":150},"frequency":"daily"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var rule models.AlertRule
	if err := json.NewDecoder(resp.Body).Decode(&rule); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rule.UserID != userID {
		t.Error("rule must belong to the authenticated user")
	}
	if !rule.NotifyEmail || !rule.NotifyInApp || !rule.IsActive {
		t.Errorf("defaults wrong: %+v", rule)
	}
}

func TestCreateAlertRejectsBadType(t *testing.T) {
	app := alertsApp(newFakeAlertStore(), uuid.New())

	req := httptest.NewRequest("POST", "/alerts",
		strings.NewReader(`{"symbol":"AAPL","alert_type":"moon_phase","conditions":{}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateAlertValidatesWatchListMembership(t *testing.T) {
	st := newFakeAlertStore()
	wlID := uuid.New()
	st.wlSymbols[wlID.String()+"/AAPL"] = true
	app := alertsApp(st, uuid.New())

	// TSLA is not on the list: rejected.
	req := httptest.NewRequest("POST", "/alerts",
		strings.NewReader(`{"symbol":"TSLA","watch_list_id":"`+wlID.String()+`","alert_type":"price_above","conditions":{"threshold":200}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for non-member symbol, got %d", resp.StatusCode)
	}

	// AAPL is on the list: accepted.
	req = httptest.NewRequest("POST", "/alerts",
		strings.NewReader(`{"symbol":"AAPL","watch_list_id":"`+wlID.String()+`","alert_type":"price_above","conditions":{"threshold":150}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Errorf("expected 201 for member symbol, got %d", resp.StatusCode)
	}
}

func TestGetAlertScopedToOwner(t *testing.T) {
	st := newFakeAlertStore()
	owner := uuid.New()
	other := uuid.New()
	rule := &models.AlertRule{ID: uuid.New(), UserID: owner, Symbol: "AAPL"}
	st.rules[rule.ID] = rule

	// The owner sees the rule.
	resp, err := alertsApp(st, owner).Test(httptest.NewRequest("GET", "/alerts/"+rule.ID.String(), nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("owner: expected 200, got %d", resp.StatusCode)
	}

	// Everyone else gets a 404, not a 403, to avoid leaking rule existence.
	resp, err = alertsApp(st, other).Test(httptest.NewRequest("GET", "/alerts/"+rule.ID.String(), nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("non-owner: expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateAlertReactivationKeepsTriggerHistory(t *testing.T) {
	st := newFakeAlertStore()
	owner := uuid.New()
	rule := &models.AlertRule{ID: uuid.New(), UserID: owner, AlertType: models.AlertTypePriceAbove}
	st.rules[rule.ID] = rule
	app := alertsApp(st, owner)

	req := httptest.NewRequest("PATCH", "/alerts/"+rule.ID.String(), strings.NewReader(`{"is_active":true}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// last_triggered_at must survive reactivation: clearing it would let a
	// spent "once" rule fire a second time.
	if _, ok := st.lastUpdates["last_triggered_at"]; ok {
		t.Errorf("reactivation must not touch last_triggered_at, got %v", st.lastUpdates)
	}
	if v, ok := st.lastUpdates["is_active"]; !ok || v != true {
		t.Errorf("expected is_active update, got %v", st.lastUpdates)
	}
}

func TestMarkLogDismissed(t *testing.T) {
	st := newFakeAlertStore()
	owner := uuid.New()
	log := &models.AlertLog{ID: uuid.New(), UserID: owner}
	st.logs[log.ID] = log
	app := alertsApp(st, owner)

	resp, err := app.Test(httptest.NewRequest("POST", "/alerts/logs/"+log.ID.String()+"/dismiss", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !log.IsDismissed {
		t.Error("log should be dismissed")
	}
}
