// Package queue provides the durable, retrying job queue between the
// webhook boundary and the ledger dispatcher, backed by Redis so jobs
// survive process restarts.
package queue

import (
	"time"

	"github.com/solarix/connector/pkg/connector"
)

// Job wraps a billing event with retry metadata. Jobs move through
// enqueued -> active -> completed, retry-scheduled or terminal-failed.
type Job struct {
	ID          string                 `json:"id"`
	Event       connector.BillingEvent `json:"event"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
	EnqueuedAt  time.Time              `json:"enqueued_at"`
	LastError   string                 `json:"last_error,omitempty"`
}
