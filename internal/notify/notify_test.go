package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPicksBackend(t *testing.T) {
	assert.IsType(t, &LogNotifier{}, New("", "bot@example.com", nil))
	assert.IsType(t, &ResendNotifier{}, New("re_test", "bot@example.com", nil))
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NoError(t, n.Notify(context.Background(), Message{To: "jo@x.com", Subject: "hi"}))
}

func TestResendNotifierRequiresRecipient(t *testing.T) {
	n := NewResendNotifier("re_test", "bot@example.com", nil)
	assert.Error(t, n.Notify(context.Background(), Message{Subject: "hi"}))
}

func TestWelcomeMessageEscapesName(t *testing.T) {
	msg := WelcomeMessage("<Jo>", "jo@x.com")
	assert.Equal(t, "jo@x.com", msg.To)
	assert.Contains(t, msg.HTML, "&lt;Jo&gt;")
	assert.NotContains(t, msg.HTML, "<Jo>")
}
