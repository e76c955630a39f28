package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/investorcenter/notification-service/internal/models"
)

type fakeOutcomeStore struct {
	logID   uuid.UUID
	sent    bool
	errText string
	calls   int
}

func (f *fakeOutcomeStore) SetDeliveryOutcome(ctx context.Context, logID uuid.UUID, sent bool, errText string) error {
	f.logID = logID
	f.sent = sent
	f.errText = errText
	f.calls++
	return nil
}

type stubChannel struct {
	name      string
	enabled   bool
	delivered bool
	err       error
	calls     int
}

func (s *stubChannel) Name() string                        { return s.name }
func (s *stubChannel) Enabled(rule *models.AlertRule) bool { return s.enabled }
func (s *stubChannel) Send(ctx context.Context, rule *models.AlertRule, alertLog *models.AlertLog, quote models.Quote) (bool, error) {
	s.calls++
	return s.delivered, s.err
}

func routerFixtures() (*models.AlertRule, *models.AlertLog) {
	return &models.AlertRule{ID: uuid.New(), NotifyEmail: true},
		&models.AlertLog{ID: uuid.New()}
}

func TestRouterRecordsSuccess(t *testing.T) {
	st := &fakeOutcomeStore{}
	email := &stubChannel{name: "email", enabled: true, delivered: true}
	inApp := &stubChannel{name: "in_app", enabled: true, delivered: true}
	r := NewRouter(st, email, inApp)

	rule, alertLog := routerFixtures()
	r.Deliver(context.Background(), rule, alertLog, models.Quote{})

	if email.calls != 1 || inApp.calls != 1 {
		t.Error("both enabled channels should be tried")
	}
	if !st.sent || st.errText != "" {
		t.Errorf("expected sent=true with no error, got sent=%v err=%q", st.sent, st.errText)
	}
	if st.logID != alertLog.ID {
		t.Error("outcome recorded against the wrong log")
	}
}

func TestRouterRecordsFailureText(t *testing.T) {
	st := &fakeOutcomeStore{}
	email := &stubChannel{name: "email", enabled: true, err: errors.New("smtp send: connection refused")}
	inApp := &stubChannel{name: "in_app", enabled: true, delivered: true}
	r := NewRouter(st, email, inApp)

	rule, alertLog := routerFixtures()
	r.Deliver(context.Background(), rule, alertLog, models.Quote{})

	if st.sent {
		t.Error("a failing channel must leave notification_sent=false")
	}
	if st.errText != "email: smtp send: connection refused" {
		t.Errorf("unexpected error text: %q", st.errText)
	}
	if inApp.calls != 1 {
		t.Error("one channel failing must not stop the others")
	}
}

func TestRouterSkipsDisabledChannels(t *testing.T) {
	st := &fakeOutcomeStore{}
	email := &stubChannel{name: "email", enabled: false}
	r := NewRouter(st, email)

	rule, alertLog := routerFixtures()
	r.Deliver(context.Background(), rule, alertLog, models.Quote{})

	if email.calls != 0 {
		t.Error("disabled channel should not be called")
	}
	if st.calls != 0 {
		t.Error("no outcome update when nothing was attempted")
	}
}

func TestRouterSuppressionIsNotFailure(t *testing.T) {
	// Quiet hours: the channel returns delivered=false with no error.
	st := &fakeOutcomeStore{}
	email := &stubChannel{name: "email", enabled: true, delivered: false}
	r := NewRouter(st, email)

	rule, alertLog := routerFixtures()
	r.Deliver(context.Background(), rule, alertLog, models.Quote{})

	if st.calls != 1 {
		t.Fatal("outcome should still be recorded")
	}
	if st.sent {
		t.Error("suppressed delivery is not sent")
	}
	if st.errText != "" {
		t.Errorf("suppression must not record an error, got %q", st.errText)
	}
}
