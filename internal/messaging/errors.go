package messaging

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyMessage means an inbound payload carried nothing to act on: a
// test/ping event, a status update, or a message without text.
var ErrEmptyMessage = errors.New("no usable message in payload")

// RateLimitedError is returned when the provider kept answering 429 after
// every attempt was used.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("send API rate limited, retry after %s", e.RetryAfter)
}

// DeliveryFailedError is a send that will not succeed by retrying: a
// permanent 4xx, or retryable failures that exhausted all attempts.
type DeliveryFailedError struct {
	Status   int // 0 when no HTTP response was received
	Body     string
	Attempts int
	Err      error
}

func (e *DeliveryFailedError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("delivery failed after %d attempt(s): status %d: %s", e.Attempts, e.Status, e.Body)
}

func (e *DeliveryFailedError) Unwrap() error { return e.Err }
