package notify

import (
	"context"
	"log/slog"
)

// LogNotifier implements Notifier by logging messages. It is used when no
// email provider is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification (dev mode, not delivered)", "to", msg.To, "subject", msg.Subject)
	return nil
}
