package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier POSTs events as JSON to a configured endpoint.
//
// The request body wraps the event payload with its name and a delivery
// timestamp:
//
//	{"event": "appraisal.approved", "delivered_at": "...", "data": {...}}
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a WebhookNotifier for the given endpoint.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookEnvelope struct {
	Event       string          `json:"event"`
	DeliveredAt time.Time       `json:"delivered_at"`
	Data        json.RawMessage `json:"data"`
}

// Notify posts the event. Any non-2xx response is an error so the job
// queue retries the delivery.
func (n *WebhookNotifier) Notify(ctx context.Context, eventName string, payload json.RawMessage) error {
	body, err := json.Marshal(webhookEnvelope{
		Event:       eventName,
		DeliveredAt: time.Now().UTC(),
		Data:        payload,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "avalia-webhook/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("delivered webhook",
		"event", eventName,
		"status", resp.StatusCode,
	)

	return nil
}
