package notify

import "context"

// Message is an out-of-band notification addressed to one recipient.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Notifier delivers notifications outside the chat channel.
// This abstraction allows swapping the log notifier with real email delivery without refactoring.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
