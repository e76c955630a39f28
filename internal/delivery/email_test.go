package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/config"
	"github.com/investorcenter/notification-service/internal/models"
)

type fakePrefStore struct {
	prefs    *models.NotificationPreferences
	prefsErr error
	user     *models.UserEmail
	userErr  error
}

func (f *fakePrefStore) EmailSettings(ctx context.Context, userID uuid.UUID) (*models.NotificationPreferences, error) {
	return f.prefs, f.prefsErr
}

func (f *fakePrefStore) UserEmail(ctx context.Context, userID uuid.UUID) (*models.UserEmail, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func testEmailChannel(prefs *fakePrefStore) (*EmailChannel, *capturedMail) {
	cfg := config.SMTP{
		Host:      "smtp.example.com",
		Port:      "587",
		Username:  "user",
		Password:  "pass",
		FromEmail: "alerts@investorcenter.ai",
		FromName:  "InvestorCenter Alerts",
	}
	ch := NewEmailChannel(cfg, "https://investorcenter.ai", prefs)
	captured := &capturedMail{}
	ch.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = msg
		return nil
	}
	return ch, captured
}

func emailTestRule() *models.AlertRule {
	return &models.AlertRule{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Symbol:      "AAPL",
		Name:        "My alert",
		AlertType:   models.AlertTypePriceAbove,
		Conditions:  json.RawMessage(`{"threshold":150}`),
		NotifyEmail: true,
	}
}

func TestEmailSendUsesAccountAddressFallback(t *testing.T) {
	prefs := &fakePrefStore{user: &models.UserEmail{Email: "user@example.com", FullName: "Test User"}}
	ch, captured := testEmailChannel(prefs)

	ok, err := ch.Send(context.Background(), emailTestRule(), &models.AlertLog{ID: uuid.New()}, models.Quote{Price: 155})
	if err != nil || !ok {
		t.Fatalf("send: ok=%v err=%v", ok, err)
	}
	if len(captured.to) != 1 || captured.to[0] != "user@example.com" {
		t.Errorf("expected fallback to account email, got %v", captured.to)
	}
	if !strings.Contains(string(captured.msg), "AAPL") {
		t.Error("message body should mention the symbol")
	}
}

func TestEmailSendPrefersPreferenceAddress(t *testing.T) {
	alt := "alerts-inbox@example.com"
	prefs := &fakePrefStore{
		prefs: &models.NotificationPreferences{EmailEnabled: true, EmailAddress: &alt},
		user:  &models.UserEmail{Email: "user@example.com"},
	}
	ch, captured := testEmailChannel(prefs)

	ok, err := ch.Send(context.Background(), emailTestRule(), &models.AlertLog{ID: uuid.New()}, models.Quote{Price: 155})
	if err != nil || !ok {
		t.Fatalf("send: ok=%v err=%v", ok, err)
	}
	if captured.to[0] != alt {
		t.Errorf("expected preference address, got %v", captured.to)
	}
}

func TestEmailSendRespectsEmailDisabled(t *testing.T) {
	prefs := &fakePrefStore{prefs: &models.NotificationPreferences{EmailEnabled: false}}
	ch, captured := testEmailChannel(prefs)

	ok, err := ch.Send(context.Background(), emailTestRule(), &models.AlertLog{ID: uuid.New()}, models.Quote{})
	if err != nil {
		t.Fatalf("disabled email is suppression, not failure: %v", err)
	}
	if ok {
		t.Error("nothing should be delivered when email is disabled")
	}
	if captured.msg != nil {
		t.Error("no SMTP call should be made")
	}
}

func TestEmailSendSkipsWhenSMTPUnconfigured(t *testing.T) {
	ch := NewEmailChannel(config.SMTP{}, "", &fakePrefStore{})
	ok, err := ch.Send(context.Background(), emailTestRule(), &models.AlertLog{ID: uuid.New()}, models.Quote{})
	if err != nil || ok {
		t.Errorf("unconfigured SMTP should skip silently: ok=%v err=%v", ok, err)
	}
}

func TestEmailHeaderInjectionStripped(t *testing.T) {
	prefs := &fakePrefStore{user: &models.UserEmail{Email: "user@example.com"}}
	ch, captured := testEmailChannel(prefs)

	rule := emailTestRule()
	rule.Symbol = "AAPL\r\nBcc: attacker@evil.com"

	ok, err := ch.Send(context.Background(), rule, &models.AlertLog{ID: uuid.New()}, models.Quote{Price: 155})
	if err != nil || !ok {
		t.Fatalf("send: ok=%v err=%v", ok, err)
	}

	headers := string(captured.msg[:strings.Index(string(captured.msg), "\r\n\r\n")])
	if strings.Contains(headers, "Bcc:") {
		t.Errorf("injected header survived sanitization:\n%s", headers)
	}
}

func TestEmailQuietHoursSuppression(t *testing.T) {
	mk := func(start, end string) *models.NotificationPreferences {
		return &models.NotificationPreferences{
			EmailEnabled:       true,
			QuietHoursEnabled:  true,
			QuietHoursStart:    start,
			QuietHoursEnd:      end,
			QuietHoursTimezone: "UTC",
		}
	}

	cases := []struct {
		name       string
		start, end string
		now        time.Time
		suppressed bool
	}{
		{"inside same-day window", "09:00", "17:00", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), true},
		{"outside same-day window", "09:00", "17:00", time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC), false},
		{"inside overnight window late", "22:00", "07:00", time.Date(2026, 8, 30, 23, 30, 0, 0, time.UTC), true},
		{"inside overnight window early", "22:00", "07:00", time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC), true},
		{"outside overnight window", "22:00", "07:00", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), false},
		{"seconds precision accepted", "22:00:00", "07:00:00", time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prefs := &fakePrefStore{prefs: mk(tc.start, tc.end), user: &models.UserEmail{Email: "user@example.com"}}
			ch, captured := testEmailChannel(prefs)
			ch.now = func() time.Time { return tc.now }

			ok, err := ch.Send(context.Background(), emailTestRule(), &models.AlertLog{ID: uuid.New()}, models.Quote{Price: 155})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.suppressed && (ok || captured.msg != nil) {
				t.Error("expected suppression during quiet hours")
			}
			if !tc.suppressed && !ok {
				t.Error("expected delivery outside quiet hours")
			}
		})
	}
}

func TestEmailSendPreferencesLookupFailure(t *testing.T) {
	prefs := &fakePrefStore{prefsErr: errors.New("db down")}
	ch, _ := testEmailChannel(prefs)

	ok, err := ch.Send(context.Background(), emailTestRule(), &models.AlertLog{ID: uuid.New()}, models.Quote{})
	if err == nil || ok {
		t.Error("a preferences lookup failure is a delivery failure")
	}
}

func TestSendTestBypassesPreferences(t *testing.T) {
	// Even a user with email disabled must not block the canary probe: the
	// store is never consulted.
	prefs := &fakePrefStore{prefsErr: errors.New("should not be called")}
	ch, captured := testEmailChannel(prefs)

	if err := ch.SendTest(context.Background(), "ops@example.com"); err != nil {
		t.Fatalf("SendTest: %v", err)
	}
	if len(captured.to) != 1 || captured.to[0] != "ops@example.com" {
		t.Errorf("unexpected recipient: %v", captured.to)
	}
}

func TestFormatVolume(t *testing.T) {
	cases := map[int64]string{
		532:           "532",
		1_234:         "1.2K",
		3_400_000:     "3.4M",
		2_500_000_000: "2.5B",
	}
	for in, want := range cases {
		if got := formatVolume(in); got != want {
			t.Errorf("formatVolume(%d) = %q, want %q", in, got, want)
		}
	}
}
