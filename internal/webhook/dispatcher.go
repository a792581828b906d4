package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/metrics"
)

const userAgent = "License-Service-Webhook/1.0"

// Delivery is one attempted (or retried) webhook send, recorded for
// observability; the dispatcher does not persist these itself.
type Delivery struct {
	WebhookID  uuid.UUID
	EventType  domain.EventType
	Attempt    int
	StatusCode int
	Err        error
}

// Dispatcher sends event payloads to configured webhook endpoints in the
// background, retrying with exponential backoff. Delivery work is handed
// off to its own goroutine so a slow or dead endpoint can never add
// latency to the license operation that raised the event.
type Dispatcher struct {
	client  *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher wires the dispatcher. m may be nil, in which case no
// metrics are recorded.
func NewDispatcher(logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		client:  &http.Client{},
		metrics: m,
		logger:  logger,
	}
}

// Dispatch builds the payload for e and fires it at cfg.URL in a new
// goroutine detached from ctx — deliveries must outlive the request that
// triggered them. The background context carries a per-attempt timeout
// derived from cfg.TimeoutSeconds, not ctx's deadline.
func (d *Dispatcher) Dispatch(cfg *domain.WebhookConfig, e domain.Event) {
	payload := map[string]any{
		"event_type": string(e.Type),
		"timestamp":  e.OccurredAt.Format(time.RFC3339Nano),
		"data":       e.Payload,
	}
	go d.deliverWithRetry(cfg, e.Type, payload)
}

func (d *Dispatcher) deliverWithRetry(cfg *domain.WebhookConfig, et domain.EventType, payload map[string]any) {
	body, err := CanonicalJSON(payload)
	if err != nil {
		d.logger.Error("webhook payload marshal failed", "webhook_id", cfg.ID, "error", err)
		return
	}
	signature := Sign(cfg.Secret, body)

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}

		ok, statusCode, err := d.attempt(cfg.URL, et, body, signature, timeout)
		if ok {
			d.logger.Info("webhook delivered",
				"webhook_id", cfg.ID, "event_type", et, "attempt", attempt, "status", statusCode)
			if d.metrics != nil {
				d.metrics.WebhookDeliveries.WithLabelValues("success").Inc()
			}
			return
		}
		d.logger.Warn("webhook delivery attempt failed",
			"webhook_id", cfg.ID, "event_type", et, "attempt", attempt, "status", statusCode, "error", err)
	}
	d.logger.Error("webhook delivery exhausted retries",
		"webhook_id", cfg.ID, "event_type", et, "max_retries", cfg.MaxRetries)
	if d.metrics != nil {
		d.metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
	}
}

func (d *Dispatcher) attempt(url string, et domain.EventType, body []byte, signature string, timeout time.Duration) (ok bool, statusCode int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(et))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, resp.StatusCode, nil
	}
	return false, resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
}

// backoff is a 2^attempt-second delay.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}
