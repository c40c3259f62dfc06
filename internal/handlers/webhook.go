package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"agendabot-backend/internal/dispatcher"
	"agendabot-backend/internal/messaging"
	"agendabot-backend/internal/middleware"
)

// Dispatcher handles one normalized inbound message.
type Dispatcher interface {
	Handle(ctx context.Context, in messaging.Inbound) (dispatcher.Outcome, error)
}

type WebhookHandler struct {
	dispatcher  Dispatcher
	verifyToken string
	logger      *slog.Logger
}

func NewWebhookHandler(d Dispatcher, verifyToken string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		dispatcher:  d,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// --- GET /webhook ---
// Subscription handshake. Accepts both the Cloud API hub.* names and plain names.

func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := firstNonEmpty(q.Get("hub.mode"), q.Get("mode"))
	token := firstNonEmpty(q.Get("hub.verify_token"), q.Get("token"))
	challenge := firstNonEmpty(q.Get("hub.challenge"), q.Get("challenge"))

	if mode == "" || token == "" || challenge == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode, token and challenge are required"})
		return
	}
	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "verification failed"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// --- POST /webhook ---

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, middleware.MaxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	in, err := messaging.Extract(body)
	if err != nil {
		if !errors.Is(err, messaging.ErrEmptyMessage) {
			h.logger.ErrorContext(r.Context(), "payload extraction failed", "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	// The gateway may hang up while a send is waiting out a retry; the reply
	// still has to go out because its rate-limit slot is already taken.
	outcome, err := h.dispatcher.Handle(context.WithoutCancel(r.Context()), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "webhook dispatch failed", "user_id", in.From, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
