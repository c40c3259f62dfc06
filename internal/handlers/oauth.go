package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sync"

	"agendabot-backend/internal/calendar"
	"agendabot-backend/internal/messaging"
)

const linkedChatText = "✅ Your Google Calendar is connected! Type *agenda* to see today's events."

// CodeExchanger completes the OAuth code flow and returns the linked user id.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, state string) (string, error)
}

// SendSlots releases a user's per-user reply interval.
type SendSlots interface {
	Reset(ctx context.Context, uid string) error
}

type OAuthHandler struct {
	oauth  CodeExchanger
	sender messaging.Sender
	slots  SendSlots
	logger *slog.Logger

	// pending tracks chat confirmations still in flight.
	pending sync.WaitGroup
}

func NewOAuthHandler(oauth CodeExchanger, sender messaging.Sender, slots SendSlots, logger *slog.Logger) *OAuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthHandler{
		oauth:  oauth,
		sender: sender,
		slots:  slots,
		logger: logger,
	}
}

// Wait blocks until every background confirmation has finished or ctx ends.
func (h *OAuthHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- GET /oauth/google/callback ---
// Google redirects here after consent. It serves a small HTML page because the
// user arrives from a browser opened out of the chat.

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writePage(w, http.StatusBadRequest, "Calendar not connected", "Google reported: "+e+". Send *connect* in the chat to try again.")
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writePage(w, http.StatusBadRequest, "Missing parameters", "This link is incomplete. Send *connect* in the chat to get a new one.")
		return
	}

	uid, err := h.oauth.Exchange(r.Context(), code, state)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidState) {
			writePage(w, http.StatusBadRequest, "Link expired", "This link is invalid or has expired. Send *connect* in the chat to get a new one.")
			return
		}
		h.logger.ErrorContext(r.Context(), "oauth exchange failed", "error", err)
		writePage(w, http.StatusInternalServerError, "Something went wrong", "We couldn't connect your calendar. Please try again.")
		return
	}

	h.logger.InfoContext(r.Context(), "calendar linked", "user_id", uid)

	// The confirmation invites "agenda"; the slot taken by the "connect"
	// reply must not swallow it.
	if err := h.slots.Reset(r.Context(), uid); err != nil {
		h.logger.WarnContext(r.Context(), "send slot not released", "user_id", uid, "error", err)
	}

	// Confirm in the chat in the background (non-blocking)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), messaging.RetryBudget(0))
		defer cancel()
		if err := h.sender.SendText(ctx, uid, linkedChatText); err != nil {
			h.logger.Warn("calendar link confirmation not delivered", "user_id", uid, "error", err)
		}
	}()

	writePage(w, http.StatusOK, "Calendar connected ✅", "You can close this page and return to WhatsApp.")
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>%s</title>
	<style>
		body { font-family: -apple-system, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #f0fdf4; }
		.card { text-align: center; padding: 40px; background: white; border-radius: 16px; box-shadow: 0 4px 24px rgba(0,0,0,0.1); max-width: 400px; }
		h1 { color: #333; font-size: 24px; }
		p { color: #666; font-size: 16px; line-height: 1.5; }
	</style>
</head>
<body>
	<div class="card">
		<h1>%s</h1>
		<p>%s</p>
	</div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
}
