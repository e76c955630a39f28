package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type stubSender struct {
	err  error
	sent []string
}

func (s *stubSender) SendTest(ctx context.Context, to string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

func canaryApp(sender TestSender, token string) *fiber.App {
	app := fiber.New()
	app.Post("/canary/email", NewCanaryHandler(sender, token).PostEmail)
	return app
}

func TestCanarySendsAndReportsLatency(t *testing.T) {
	sender := &stubSender{}
	app := canaryApp(sender, "secret-token")

	req := httptest.NewRequest("POST", "/canary/email", strings.NewReader(`{"to":"ops@example.com","name":"Ops"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status    string `json:"status"`
		LatencyMs *int64 `json:"latency_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "sent" || body.LatencyMs == nil {
		t.Errorf("unexpected body: %+v", body)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "ops@example.com" {
		t.Errorf("unexpected recipients: %v", sender.sent)
	}
}

func TestCanaryRejectsBadToken(t *testing.T) {
	app := canaryApp(&stubSender{}, "secret-token")

	req := httptest.NewRequest("POST", "/canary/email", strings.NewReader(`{"to":"ops@example.com","name":"Ops"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCanaryRejectsMissingToken(t *testing.T) {
	app := canaryApp(&stubSender{}, "secret-token")

	req := httptest.NewRequest("POST", "/canary/email", strings.NewReader(`{"to":"ops@example.com","name":"Ops"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCanaryDisabledWithoutConfiguredToken(t *testing.T) {
	// An empty configured token disables the endpoint even for empty bearers.
	app := canaryApp(&stubSender{}, "")

	req := httptest.NewRequest("POST", "/canary/email", strings.NewReader(`{"to":"ops@example.com","name":"Ops"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer ")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCanaryRequiresRecipient(t *testing.T) {
	app := canaryApp(&stubSender{}, "secret-token")

	req := httptest.NewRequest("POST", "/canary/email", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCanarySendFailure(t *testing.T) {
	app := canaryApp(&stubSender{err: errors.New("smtp timeout")}, "secret-token")

	req := httptest.NewRequest("POST", "/canary/email", strings.NewReader(`{"to":"ops@example.com","name":"Ops"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
}

func TestCanaryRejectsWrongMethod(t *testing.T) {
	app := canaryApp(&stubSender{}, "secret-token")

	req := httptest.NewRequest("GET", "/canary/email", nil)
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}
