package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarix/connector/pkg/connector"
	"github.com/solarix/connector/pkg/intuit"
)

func paymentResolver() *fakeResolver {
	return &fakeResolver{records: map[string]intuit.Entity{
		"Customer/cus_ABC123": {"Id": "58"},
		"Invoice/in_1MtHbE":   {"Id": "203"},
	}}
}

func TestPaymentFrom(t *testing.T) {
	adapter := &Payment{Ledger: paymentResolver()}

	got, err := adapter.From(context.Background(), map[string]any{
		"id":             "in_1MtHbE",
		"customer":       "cus_ABC123",
		"amount_paid":    float64(2500),
		"payment_intent": "pi_3MtwBwLkdIwHu7ix",
		"number":         "F8E367E5-0001",
	})
	require.NoError(t, err)

	assert.Equal(t, 25.0, got["TotalAmt"])
	assert.Equal(t, map[string]any{"value": "58"}, got["CustomerRef"])
	assert.Equal(t, "pi_3MtwBwLkdIwHu7ix", got["PaymentRefNum"])

	lines := got["Line"].([]map[string]any)
	require.Len(t, lines, 1)
	assert.Equal(t, 25.0, lines[0]["Amount"])
	assert.Equal(t, []map[string]any{
		{"TxnId": "203", "TxnType": "Invoice"},
	}, lines[0]["LinkedTxn"])
}

func TestPaymentFromExpandedPaymentIntent(t *testing.T) {
	adapter := &Payment{Ledger: paymentResolver()}

	got, err := adapter.From(context.Background(), map[string]any{
		"id":          "in_1MtHbE",
		"customer":    "cus_ABC123",
		"amount_paid": float64(100),
		"payment_intent": map[string]any{
			"id": "pi_3MtwBwLkdIwHu7ix",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_3MtwBwLkdIwHu7ix", got["PaymentRefNum"])
}

// Zero-amount invoices carry no payment intent; the provider invoice
// number stands in as the payment reference.
func TestPaymentFromNumberFallback(t *testing.T) {
	adapter := &Payment{Ledger: paymentResolver()}

	got, err := adapter.From(context.Background(), map[string]any{
		"id":          "in_1MtHbE",
		"customer":    "cus_ABC123",
		"amount_paid": float64(0),
		"number":      "F8E367E5-0001",
	})
	require.NoError(t, err)
	assert.Equal(t, "F8E367E5-0001", got["PaymentRefNum"])
	assert.Equal(t, 0.0, got["TotalAmt"])
}

func TestPaymentFromMissingInvoice(t *testing.T) {
	adapter := &Payment{Ledger: &fakeResolver{records: map[string]intuit.Entity{
		"Customer/cus_ABC123": {"Id": "58"},
	}}}

	_, err := adapter.From(context.Background(), map[string]any{
		"id":       "in_MISSING",
		"customer": "cus_ABC123",
	})
	assert.ErrorIs(t, err, connector.ErrNotFound)
}
