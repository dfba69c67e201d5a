package connector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		input string
		want  EventKind
		ok    bool
	}{
		{input: "customer.created", want: CustomerCreated, ok: true},
		{input: "plan.deleted", want: PlanDeleted, ok: true},
		{input: "invoice.payment_succeeded", want: InvoicePaymentSucceeded, ok: true},
		{input: "payment_intent.created", want: PaymentIntentCreated, ok: true},
		{input: "charge.refunded", ok: false},
		{input: "customer.subscription.created", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseEventKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.True(t, got.Recognized())
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	payload, err := DecodePayload(json.RawMessage(`{"id":"cus_ABC123","metadata":{"username":"jane"}}`))
	require.NoError(t, err)
	assert.Equal(t, "cus_ABC123", payload["id"])

	_, err = DecodePayload(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
}

func TestBillingEventJSON(t *testing.T) {
	ev := BillingEvent{
		ID:      "evt_1",
		Kind:    InvoiceCreated,
		Payload: map[string]any{"id": "in_1"},
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var got BillingEvent
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Kind, got.Kind)
	assert.Equal(t, "in_1", got.Payload["id"])
}
