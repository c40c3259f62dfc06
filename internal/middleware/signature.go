package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// MaxWebhookBody caps how much of an inbound webhook is read.
const MaxWebhookBody = 1 << 20

// Signature headers, checked in order.
var signatureHeaders = []string{"X-Hub-Signature-256", "X-Webhook-Signature"}

// WebhookSignature verifies an HMAC-SHA256 of the raw body against the
// shared secret. When required is false the check is skipped entirely.
// With required set and an empty secret every request is rejected.
func WebhookSignature(secret string, required bool, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, MaxWebhookBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if secret == "" || !validSignature(secret, body, r.Header) {
				logger.WarnContext(r.Context(), "webhook signature rejected", "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sign returns the hex HMAC-SHA256 of body, as expected in the signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, h http.Header) bool {
	want := Sign(secret, body)
	for _, name := range signatureHeaders {
		got := strings.TrimPrefix(strings.TrimSpace(h.Get(name)), "sha256=")
		if got == "" {
			continue
		}
		if hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
