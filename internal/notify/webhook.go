package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookEmitter posts events as JSON to a single endpoint. The short
// client timeout keeps a slow channel from blocking a run.
type WebhookEmitter struct {
	url    string
	client *http.Client
}

func NewWebhookEmitter(url string, timeout time.Duration) *WebhookEmitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookEmitter{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (e *WebhookEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %s", resp.Status)
	}
	return nil
}
