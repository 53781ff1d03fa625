package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	webhookAttempts = 3
	webhookBackoff  = 500 * time.Millisecond
)

// WebhookSink POSTs alerts as JSON.
type WebhookSink struct {
	client   *http.Client
	endpoint string
	backoff  time.Duration
}

func NewWebhookSink(endpoint string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoint: strings.TrimSpace(endpoint),
		backoff:  webhookBackoff,
	}
}

// Notify delivers alert. Server errors are retried; other non-2xx responses fail at once.
func (w *WebhookSink) Notify(ctx context.Context, alert Alert) error {
	if w.endpoint == "" {
		return fmt.Errorf("webhook endpoint is required")
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < webhookAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(attempt)):
			}
		}
		retry, err := w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return lastErr
}

func (w *WebhookSink) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "flowlint")

	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return true, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode >= 500, fmt.Errorf("webhook request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return false, nil
}
