// Package connector defines the shared vocabulary of the Stripe to
// QuickBooks relay: the billing event envelope, the closed set of event
// kinds the pipeline recognizes, and the logging/metrics interfaces every
// component accepts.
package connector

import (
	"encoding/json"
	"time"
)

// EventKind identifies a recognized (entity, action) pair from the billing
// provider. The set is closed: dispatch happens through a registry keyed on
// these values, and anything outside the set is acknowledged but ignored.
type EventKind string

const (
	CustomerCreated EventKind = "customer.created"
	CustomerUpdated EventKind = "customer.updated"
	CustomerDeleted EventKind = "customer.deleted"

	ProductCreated EventKind = "product.created"
	ProductUpdated EventKind = "product.updated"
	ProductDeleted EventKind = "product.deleted"

	PlanCreated EventKind = "plan.created"
	PlanUpdated EventKind = "plan.updated"
	PlanDeleted EventKind = "plan.deleted"

	InvoiceCreated EventKind = "invoice.created"
	InvoiceUpdated EventKind = "invoice.updated"
	InvoiceDeleted EventKind = "invoice.deleted"

	// InvoicePaymentSucceeded drives Payment creation in the ledger.
	InvoicePaymentSucceeded EventKind = "invoice.payment_succeeded"

	// Accepted from the provider but deliberately no-ops, matching the
	// behavior the webhook has always advertised to Stripe.
	PaymentIntentCreated   EventKind = "payment_intent.created"
	PaymentIntentSucceeded EventKind = "payment_intent.succeeded"
)

var knownKinds = map[EventKind]struct{}{
	CustomerCreated:         {},
	CustomerUpdated:         {},
	CustomerDeleted:         {},
	ProductCreated:          {},
	ProductUpdated:          {},
	ProductDeleted:          {},
	PlanCreated:             {},
	PlanUpdated:             {},
	PlanDeleted:             {},
	InvoiceCreated:          {},
	InvoiceUpdated:          {},
	InvoiceDeleted:          {},
	InvoicePaymentSucceeded: {},
	PaymentIntentCreated:    {},
	PaymentIntentSucceeded:  {},
}

// ParseEventKind maps a provider event type string onto the closed enum.
// The second return is false for any type outside the recognized set.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(s)
	_, ok := knownKinds[k]
	return k, ok
}

// Recognized reports whether the kind belongs to the closed set.
func (k EventKind) Recognized() bool {
	_, ok := knownKinds[k]
	return ok
}

// BillingEvent is the immutable envelope enqueued for every accepted
// webhook delivery. Payload holds the provider's `data.object` as loosely
// typed JSON, exactly as received.
type BillingEvent struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

// DecodePayload unmarshals a raw provider object into the envelope payload.
func DecodePayload(raw json.RawMessage) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
