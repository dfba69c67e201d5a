// Package prommetrics provides a Prometheus implementation of the
// connector.Metrics interface.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/solarix/connector/pkg/connector"
)

// Metrics implements connector.Metrics using Prometheus.
type Metrics struct {
	webhookEventsTotal  *prometheus.CounterVec
	webhookErrorsTotal  *prometheus.CounterVec
	jobsTotal           *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	ledgerCallsTotal    *prometheus.CounterVec
	ledgerCallDuration  *prometheus.HistogramVec
	tokenRefreshesTotal *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation for the relay.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total number of webhook deliveries received from the billing provider.",
		}, []string{"event_type", "status"}),

		webhookErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "errors_total",
			Help:      "Total number of rejected webhook deliveries.",
		}, []string{"error_type"}),

		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Total number of finished job attempts by outcome.",
		}, []string{"kind", "outcome"}),

		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Duration of job attempts in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		ledgerCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "api_calls_total",
			Help:      "Total number of outbound ledger API calls.",
		}, []string{"entity", "operation", "status"}),

		ledgerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of outbound ledger API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),

		tokenRefreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Total number of OAuth token refresh attempts.",
		}, []string{"status"}),
	}
}

// DefaultMetrics creates metrics registered on the default Prometheus registry.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}

func (m *Metrics) RecordWebhookEvent(eventType, status string) {
	m.webhookEventsTotal.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) RecordWebhookError(errorType string) {
	m.webhookErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) RecordJob(kind, outcome string) {
	m.jobsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordJobDuration(kind string, duration time.Duration) {
	m.jobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordLedgerCall(entity, operation, status string) {
	m.ledgerCallsTotal.WithLabelValues(entity, operation, status).Inc()
}

func (m *Metrics) RecordLedgerCallDuration(entity, operation string, duration time.Duration) {
	m.ledgerCallDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordTokenRefresh(status string) {
	m.tokenRefreshesTotal.WithLabelValues(status).Inc()
}

var _ connector.Metrics = (*Metrics)(nil)
