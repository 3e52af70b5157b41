package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// Webhook posts events as JSON to a url, retrying failed deliveries
type Webhook struct {
	url     string
	client  *http.Client
	retries int
}

// NewWebhook makes a webhook sink
func NewWebhook(url string, timeout time.Duration, retries int) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries <= 0 {
		retries = 3
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}, retries: retries}
}

// Send posts the event, any non-2xx response is retried
func (w *Webhook) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	retrier := repeater.NewBackoff(w.retries, 200*time.Millisecond, repeater.WithMaxDelay(5*time.Second))
	return retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
		}
		return nil
	})
}
