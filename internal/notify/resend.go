package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendNotifier sends notifications as email through Resend.
type ResendNotifier struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

func NewResendNotifier(apiKey, from string, logger *slog.Logger) *ResendNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (n *ResendNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("notification recipient is required")
	}
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	sent, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	n.logger.InfoContext(ctx, "email sent", "id", sent.Id, "to", msg.To)
	return nil
}

// New picks the Resend notifier when an API key is configured and the log
// notifier otherwise.
func New(apiKey, from string, logger *slog.Logger) Notifier {
	if apiKey == "" {
		return NewLogNotifier(logger)
	}
	return NewResendNotifier(apiKey, from, logger)
}
