package connector

import "time"

// Metrics defines the interface for tracking relay operations.
// All methods are optional - components should gracefully handle nil metrics
// by substituting NoopMetrics.
type Metrics interface {
	// RecordWebhookEvent records an inbound webhook delivery.
	// status: "queued", "ignored", "duplicate" or "error"
	RecordWebhookEvent(eventType, status string)

	// RecordWebhookError records a rejected webhook delivery.
	// errorType: "auth_failed", "invalid_payload", "payload_too_large", "enqueue_failed"
	RecordWebhookError(errorType string)

	// RecordJob records a finished job attempt.
	// outcome: "completed", "retried" or "failed"
	RecordJob(kind, outcome string)

	// RecordJobDuration records how long a job attempt ran.
	RecordJobDuration(kind string, duration time.Duration)

	// RecordLedgerCall records an outbound ledger API call.
	// status: HTTP status code as string, or "network_error" / "request_error"
	RecordLedgerCall(entity, operation, status string)

	// RecordLedgerCallDuration records how long a ledger API call took.
	RecordLedgerCallDuration(entity, operation string, duration time.Duration)

	// RecordTokenRefresh records a token refresh attempt.
	// status: "success", "invalid" or "error"
	RecordTokenRefresh(status string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _ string)                        {}
func (n *NoopMetrics) RecordWebhookError(_ string)                           {}
func (n *NoopMetrics) RecordJob(_, _ string)                                 {}
func (n *NoopMetrics) RecordJobDuration(_ string, _ time.Duration)           {}
func (n *NoopMetrics) RecordLedgerCall(_, _, _ string)                       {}
func (n *NoopMetrics) RecordLedgerCallDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordTokenRefresh(_ string)                           {}
