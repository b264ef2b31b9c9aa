package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultWebhookTimeout bounds a single delivery attempt.
const DefaultWebhookTimeout = 30 * time.Second

// WebhookPublisher POSTs each event as JSON to a configured endpoint.
// Delivery is best-effort: a failed POST is returned as an error for the
// caller to log, never retried here.
type WebhookPublisher struct {
	endpoint string
	httpc    *http.Client
	logger   *slog.Logger
}

// NewWebhookPublisher creates a webhook publisher for the endpoint.
func NewWebhookPublisher(endpoint string, timeout time.Duration, logger *slog.Logger) *WebhookPublisher {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookPublisher{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Attendant-Event", string(event.Type()))

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", event.Type(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver %s: webhook returned status %d", event.Type(), resp.StatusCode)
	}

	p.logger.Debug("[Events] Webhook delivered",
		"type", event.Type(),
		"call_id", event.CallID(),
		"endpoint", p.endpoint,
	)
	return nil
}

func (p *WebhookPublisher) Close() error { return nil }
