package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"agendabot-backend/internal/config"
	"agendabot-backend/internal/middleware"
	"agendabot-backend/internal/models"
	"agendabot-backend/internal/onboarding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "test-secret"

type outbound struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func newTestApp(t *testing.T) (http.Handler, *Services, chan outbound) {
	t.Helper()
	return newTestAppWithGateway(t, func(call int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
	})
}

// newTestAppWithGateway lets the test script the send API's answer to each call.
func newTestAppWithGateway(t *testing.T, answer func(call int32, w http.ResponseWriter)) (http.Handler, *Services, chan outbound) {
	t.Helper()

	var calls int32
	sent := make(chan outbound, 10)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg outbound
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg)) {
			sent <- msg
		}
		answer(atomic.AddInt32(&calls, 1), w)
	}))
	t.Cleanup(gateway.Close)

	cfg := config.Config{
		Store: config.StoreConfig{Backend: "memory"},
		Messaging: config.MessagingConfig{
			APIURL:            gateway.URL,
			APIKey:            "key",
			VerifyToken:       "verify",
			WebhookSecret:     webhookSecret,
			SignatureRequired: true,
			MinSendInterval:   time.Minute,
			SendTimeout:       time.Second,
		},
		Google: config.GoogleConfig{
			ClientID:    "client",
			RedirectURL: "https://bot.example.com/oauth/google/callback",
			StateSecret: "state-secret",
		},
		DefaultTimezone: "UTC",
	}

	st, err := OpenStore(context.Background(), cfg.Store)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewServices(cfg, st, logger)
	return NewRouter(cfg, svc, logger), svc, sent
}

func signedWebhook(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256="+middleware.Sign(webhookSecret, []byte(body)))
	return req
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestRouter_Health(t *testing.T) {
	h, _, _ := newTestApp(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_VerifyHandshake(t *testing.T) {
	h, _, _ := newTestApp(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=123", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123", rec.Body.String())
}

func TestRouter_RejectsUnsignedWebhook(t *testing.T) {
	h, _, sent := newTestApp(t)
	body := `{"event":"messages.upsert","data":{"messages":{"key":{"remoteJid":"15550001@s.whatsapp.net"},"message":{"conversation":"help"}}}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sent)
}

func TestRouter_OnboardingConversation(t *testing.T) {
	h, svc, sent := newTestApp(t)
	ctx := context.Background()
	uid := "15550001"

	say := func(text string) string {
		body := `{"event":"messages.upsert","data":{"messages":{"key":{"remoteJid":"` + uid +
			`@s.whatsapp.net"},"message":{"conversation":"` + text + `"}}}}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedWebhook(body))
		require.Equal(t, http.StatusOK, rec.Code)

		select {
		case msg := <-sent:
			assert.Equal(t, uid, msg.To)
			return msg.Text
		case <-time.After(2 * time.Second):
			t.Fatalf("no reply to %q", text)
			return ""
		}
	}

	assert.Equal(t, onboarding.WelcomePrompt, say("hi"))
	assert.Contains(t, say("Ada"), "Ada")
	assert.Equal(t, onboarding.PhonePrompt, say("ada@example.com"))
	assert.Contains(t, say("skip"), "You're all set")

	p, err := svc.Users.GetProfile(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, &models.Profile{Name: "Ada", Email: "ada@example.com"}, p)

	// First command after onboarding is answered.
	reply := say("connect")
	assert.Contains(t, reply, "https://accounts.google.com/")
}

func TestRouter_MetricsExposed(t *testing.T) {
	h, _, _ := newTestApp(t)

	body := `{"event":"session.status","data":{"status":"connected"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedWebhook(body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_ReplySurvivesGatewayHangup(t *testing.T) {
	h, svc, sent := newTestAppWithGateway(t, func(call int32, w http.ResponseWriter) {
		if call == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"retry_after":1}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()
	uid := "15550009"
	require.NoError(t, svc.Users.SetProfile(ctx, uid, models.Profile{Name: "Ada", Email: "ada@example.com"}))

	body := `{"event":"messages.upsert","data":{"messages":{"key":{"remoteJid":"` + uid +
		`@s.whatsapp.net"},"message":{"conversation":"help"}}}}`
	reqCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedWebhook(body).WithContext(reqCtx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"replied"}`, rec.Body.String())
	require.Len(t, sent, 2, "rate-limited attempt plus the retry")
}
