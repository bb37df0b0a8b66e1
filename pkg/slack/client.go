// Package slack posts plain-text notices to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Notifier sends a text message to a channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// APIError is returned when the webhook responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the webhook client.
type Option func(*webhook)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(w *webhook) {
		w.http = hc
	}
}

type webhook struct {
	url  string
	http *http.Client
}

// NewNotifier returns a webhook Notifier. An empty URL yields a Notifier
// that drops every message.
func NewNotifier(webhookURL string, opts ...Option) Notifier {
	if webhookURL == "" {
		return Nop{}
	}
	w := &webhook{url: webhookURL, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type message struct {
	Text string `json:"text"`
}

func (w *webhook) Notify(ctx context.Context, text string) error {
	buf, err := json.Marshal(message{Text: text})
	if err != nil {
		return eris.Wrap(err, "slack: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "slack: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "slack: post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Nop discards notices.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
