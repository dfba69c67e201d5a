// Package webhook terminates Stripe webhook deliveries: it verifies the
// signature, filters the event type against the recognized set, and hands
// accepted events to the durable queue. The HTTP response is always fast;
// all ledger work happens asynchronously in the worker.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/solarix/connector/internal/httpx"
	"github.com/solarix/connector/pkg/connector"
)

// maxBodyBytes bounds webhook payloads. Stripe events are small; anything
// larger is hostile or broken.
const maxBodyBytes = 256 * 1024

// Enqueuer is the queue boundary the handler needs. Satisfied by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev connector.BillingEvent) (string, error)
}

// Config configures the webhook handler.
type Config struct {
	// SigningSecret verifies the Stripe-Signature header. Required.
	SigningSecret string

	// Queue receives accepted events. Required.
	Queue Enqueuer

	Logger  connector.Logger
	Metrics connector.Metrics
}

// Handler is the HTTP endpoint Stripe posts events to.
type Handler struct {
	secret  string
	queue   Enqueuer
	logger  connector.Logger
	metrics connector.Metrics
}

// NewHandler creates a webhook handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("webhook: signing secret is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("webhook: queue is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &connector.NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &connector.NoopMetrics{}
	}
	return &Handler{
		secret:  cfg.SigningSecret,
		queue:   cfg.Queue,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// ServeHTTP verifies and enqueues one webhook delivery.
//
// Stripe retries on any non-2xx response, so the handler only returns
// errors for conditions a retry might fix or that indicate a bad sender.
// Recognized events are acknowledged with the job id; events outside the
// recognized set are acknowledged and dropped so Stripe stops resending
// types we will never handle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := httpx.ReadBodyStrict(w, r, maxBodyBytes)
	if err != nil {
		if errors.Is(err, httpx.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			h.metrics.RecordWebhookError("payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			h.metrics.RecordWebhookError("invalid_payload")
		}
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("stripe-signature")
	}

	event, err := stripe.ConstructEvent(body, sig, h.secret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed",
			connector.Field{Key: "error", Value: err.Error()})
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		h.metrics.RecordWebhookError("auth_failed")
		return
	}

	eventType := string(event.Type)
	kind, ok := connector.ParseEventKind(eventType)
	if !ok {
		h.logger.Debug("webhook event ignored",
			connector.Field{Key: "event_id", Value: event.ID},
			connector.Field{Key: "event_type", Value: eventType})
		h.metrics.RecordWebhookEvent(eventType, "ignored")
		h.writeAck(w, http.StatusOK, "Event ignored.")
		return
	}

	payload, err := connector.DecodePayload(event.Data.Raw)
	if err != nil {
		h.logger.Error("webhook payload decode failed",
			connector.Field{Key: "event_id", Value: event.ID},
			connector.Field{Key: "event_type", Value: eventType},
			connector.Field{Key: "error", Value: err.Error()})
		http.Error(w, "invalid payload", http.StatusBadRequest)
		h.metrics.RecordWebhookError("invalid_payload")
		return
	}

	ev := connector.BillingEvent{
		ID:        event.ID,
		Kind:      kind,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
		Payload:   payload,
	}

	jobID, err := h.queue.Enqueue(r.Context(), ev)
	if err != nil {
		if errors.Is(err, connector.ErrDuplicateJob) {
			h.logger.Debug("webhook event already queued",
				connector.Field{Key: "event_id", Value: event.ID},
				connector.Field{Key: "event_type", Value: eventType})
			h.metrics.RecordWebhookEvent(eventType, "duplicate")
			h.writeAck(w, http.StatusOK, "Event already queued.")
			return
		}
		h.logger.Error("webhook enqueue failed",
			connector.Field{Key: "event_id", Value: event.ID},
			connector.Field{Key: "event_type", Value: eventType},
			connector.Field{Key: "error", Value: err.Error()})
		http.Error(w, "failed to queue event", http.StatusInternalServerError)
		h.metrics.RecordWebhookEvent(eventType, "error")
		h.metrics.RecordWebhookError("enqueue_failed")
		return
	}

	h.logger.Info("webhook event queued",
		connector.Field{Key: "event_id", Value: event.ID},
		connector.Field{Key: "event_type", Value: eventType},
		connector.Field{Key: "job_id", Value: jobID})
	h.metrics.RecordWebhookEvent(eventType, "queued")
	h.writeAck(w, http.StatusOK, fmt.Sprintf("Job (%s) queued.", jobID))
}

func (h *Handler) writeAck(w http.ResponseWriter, code int, message string) {
	if err := httpx.WriteJSON(w, code, map[string]string{"message": message}); err != nil {
		h.logger.Warn("webhook ack write failed",
			connector.Field{Key: "error", Value: err.Error()})
	}
}
