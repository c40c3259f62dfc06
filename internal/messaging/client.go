// Package messaging talks to the WhatsApp gateway: it sends outbound text
// messages and normalizes inbound webhook payloads.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agendabot-backend/internal/metrics"
)

const (
	DefaultAPIURL            = "https://www.wasenderapi.com/api/send-message"
	DefaultTimeout           = 10 * time.Second
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = 1 * time.Second
	DefaultRetryAfter        = 60 * time.Second
	maxErrorBodyBytes  int64 = 4 << 10
)

// RetryBudget is how long SendText can take with the default policy when every
// attempt times out or is rate limited with the default wait.
func RetryBudget(perAttempt time.Duration) time.Duration {
	if perAttempt <= 0 {
		perAttempt = DefaultTimeout
	}
	return DefaultMaxAttempts*perAttempt + (DefaultMaxAttempts-1)*DefaultRetryAfter
}

// Sender is what the dispatcher needs from the delivery client.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Client. Zero values pick the defaults above.
type Options struct {
	APIURL      string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	HTTPClient  *http.Client
	Sleep       SleepFunc
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Client sends text messages with retry and backoff. It keeps no state
// between calls, so one Client is shared by all concurrent requests.
type Client struct {
	apiURL      string
	apiKey      string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	http        *http.Client
	sleep       SleepFunc
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

var _ Sender = (*Client)(nil)

func NewClient(opts Options) *Client {
	c := &Client{
		apiURL:      opts.APIURL,
		apiKey:      opts.APIKey,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		http:        opts.HTTPClient,
		sleep:       opts.Sleep,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Sleep is the default SleepFunc. It parks only the calling goroutine.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NormalizeRecipient strips the leading "+" the gateway rejects.
func NormalizeRecipient(to string) string {
	return strings.TrimPrefix(strings.TrimSpace(to), "+")
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type errorResponse struct {
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after"`
}

// SendText delivers body to the recipient. It returns *RateLimitedError or
// *DeliveryFailedError on failure.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(sendRequest{To: NormalizeRecipient(to), Text: body})
	if err != nil {
		return &DeliveryFailedError{Err: fmt.Errorf("encode request: %w", err)}
	}

	for attempt := 1; ; attempt++ {
		status, respBody, header, err := c.attempt(ctx, payload)
		last := attempt >= c.maxAttempts

		switch {
		case err != nil:
			if ctx.Err() != nil {
				c.metrics.Outbound("failed")
				return &DeliveryFailedError{Attempts: attempt, Err: ctx.Err()}
			}
			c.metrics.OutboundAttempt("transport_error")
			if last {
				c.metrics.Outbound("failed")
				return &DeliveryFailedError{Attempts: attempt, Err: err}
			}
			c.logger.WarnContext(ctx, "send transport error, retrying", "attempt", attempt, "error", err)

		case status >= 200 && status < 300:
			c.metrics.OutboundAttempt("ok")
			c.metrics.Outbound("sent")
			return nil

		case status == http.StatusTooManyRequests:
			c.metrics.OutboundAttempt("rate_limited")
			wait := retryAfter(respBody, header)
			if last {
				c.metrics.Outbound("rate_limited")
				return &RateLimitedError{RetryAfter: wait}
			}
			c.logger.WarnContext(ctx, "send rate limited, waiting", "attempt", attempt, "retry_after", wait)
			if err := c.sleep(ctx, wait); err != nil {
				c.metrics.Outbound("failed")
				return &DeliveryFailedError{Status: status, Attempts: attempt, Err: err}
			}
			continue

		case status >= 500 || status == http.StatusRequestTimeout:
			c.metrics.OutboundAttempt("server_error")
			if last {
				c.metrics.Outbound("failed")
				return &DeliveryFailedError{Status: status, Body: respBody, Attempts: attempt}
			}
			c.logger.WarnContext(ctx, "send failed, retrying", "attempt", attempt, "status", status)

		default:
			c.metrics.OutboundAttempt("rejected")
			c.metrics.Outbound("failed")
			return &DeliveryFailedError{Status: status, Body: respBody, Attempts: attempt}
		}

		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			c.metrics.Outbound("failed")
			return &DeliveryFailedError{Status: status, Attempts: attempt, Err: err}
		}
	}
}

// backoff is base * 2^(attempt-1).
func (c *Client) backoff(attempt int) time.Duration {
	return c.baseDelay << (attempt - 1)
}

func (c *Client) attempt(ctx context.Context, payload []byte) (int, string, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return resp.StatusCode, string(body), resp.Header, nil
}

// retryAfter prefers the gateway's JSON retry_after, then the Retry-After
// header, then DefaultRetryAfter.
func retryAfter(body string, header http.Header) time.Duration {
	var er errorResponse
	if err := json.Unmarshal([]byte(body), &er); err == nil && er.RetryAfter != nil && *er.RetryAfter > 0 {
		return time.Duration(*er.RetryAfter) * time.Second
	}
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return DefaultRetryAfter
}
