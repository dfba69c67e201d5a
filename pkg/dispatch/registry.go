// Package dispatch routes dequeued billing events to the adapter and
// ledger gateway call that realizes them. Routing is a closed registry
// keyed on connector.EventKind; kinds outside the registry resolve to a
// successful no-op, never a job failure.
package dispatch

import (
	"context"

	"github.com/solarix/connector/pkg/connector"
)

// Handler realizes one event kind against the ledger.
type Handler func(ctx context.Context, ev connector.BillingEvent) error

type registration struct {
	name    string
	handler Handler
}

// Registry maps event kinds to named handlers. It implements
// queue.Processor.
type Registry struct {
	entries map[connector.EventKind]registration
	log     connector.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log connector.Logger) *Registry {
	if log == nil {
		log = &connector.NoopLogger{}
	}
	return &Registry{
		entries: make(map[connector.EventKind]registration),
		log:     log,
	}
}

// Register binds a handler to an event kind. The name appears in queue
// telemetry.
func (r *Registry) Register(kind connector.EventKind, name string, h Handler) {
	r.entries[kind] = registration{name: name, handler: h}
}

// Process dispatches one billing event. Unregistered kinds are accepted
// and ignored.
func (r *Registry) Process(ctx context.Context, ev connector.BillingEvent) error {
	entry, ok := r.entries[ev.Kind]
	if !ok {
		r.log.Debug("no handler registered for event kind; ignoring",
			connector.Field{Key: "kind", Value: string(ev.Kind)},
			connector.Field{Key: "event_id", Value: ev.ID},
		)
		return nil
	}
	return entry.handler(ctx, ev)
}

// HandlerName returns the registered handler name for a kind, or "none".
func (r *Registry) HandlerName(kind connector.EventKind) string {
	if entry, ok := r.entries[kind]; ok {
		return entry.name
	}
	return "none"
}
