package adapters

import (
	"context"

	"github.com/solarix/connector/pkg/connector"
	"github.com/solarix/connector/pkg/intuit"
	"github.com/solarix/connector/pkg/money"
	"github.com/solarix/connector/pkg/stripeid"
)

// Payment converts a paid Stripe Invoice into a QuickBooks Payment
// payload linked to the ledger Invoice it settles.
//
// Stripe: https://stripe.com/docs/api/invoices/object
// Intuit: https://developer.intuit.com/app/developer/qbo/docs/api/accounting/most-commonly-used/payment
type Payment struct {
	Ledger Resolver
	Log    connector.Logger
}

// From maps the source object. The payment reference is the Stripe
// payment-intent id; zero-amount invoices never get a payment intent, so
// those fall back to the provider's invoice number.
func (a *Payment) From(ctx context.Context, src map[string]any) (map[string]any, error) {
	log := a.Log
	if log == nil {
		log = &connector.NoopLogger{}
	}

	customer, err := a.Ledger.Read(ctx, intuit.Customer, getString(src, "customer"))
	if err != nil {
		log.Error("payment adapter could not resolve ledger customer",
			connector.Field{Key: "invoice", Value: getString(src, "id")},
			connector.Field{Key: "customer", Value: getString(src, "customer")},
			connector.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	invoice, err := a.Ledger.Read(ctx, intuit.Invoice, getString(src, "id"))
	if err != nil {
		log.Error("payment adapter could not resolve ledger invoice",
			connector.Field{Key: "invoice", Value: getString(src, "id")},
			connector.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	amount := money.ToMajorFloat(getMinor(src, "amount_paid"))

	return map[string]any{
		"TotalAmt": amount,
		"CustomerRef": map[string]any{
			"value": customer["Id"],
		},
		"PaymentRefNum": stripeid.Normalize(a.paymentRef(src), intuit.Payment.RefLength),
		"Line": []map[string]any{
			{
				"Amount": amount,
				"LinkedTxn": []map[string]any{
					{
						"TxnId":   invoice["Id"],
						"TxnType": "Invoice",
					},
				},
			},
		},
	}, nil
}

// paymentRef picks the ledger payment reference from the source invoice.
func (a *Payment) paymentRef(src map[string]any) string {
	switch pi := get(src, "payment_intent").(type) {
	case string:
		if pi != "" {
			return pi
		}
	case map[string]any:
		if id, ok := pi["id"].(string); ok && id != "" {
			return id
		}
	}
	return getString(src, "number")
}
