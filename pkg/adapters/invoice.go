package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/solarix/connector/pkg/connector"
	"github.com/solarix/connector/pkg/intuit"
	"github.com/solarix/connector/pkg/money"
	"github.com/solarix/connector/pkg/stripeid"
)

// Invoice converts a Stripe Invoice object into a QuickBooks Invoice
// payload, resolving the ledger Customer and the per-line Items.
//
// Stripe: https://stripe.com/docs/api/invoices/object
// Intuit: https://developer.intuit.com/app/developer/qbo/docs/api/accounting/most-commonly-used/invoice
type Invoice struct {
	Ledger Resolver
	Log    connector.Logger
}

// From maps the source object. A line whose plan has no matching ledger
// Item fails the whole invoice: a partial invoice in the ledger is worse
// than a retried job, and the missing Item may be created by an in-flight
// plan job before the retry.
func (a *Invoice) From(ctx context.Context, src map[string]any) (map[string]any, error) {
	log := a.Log
	if log == nil {
		log = &connector.NoopLogger{}
	}

	customer, err := a.Ledger.Read(ctx, intuit.Customer, getString(src, "customer"))
	if err != nil {
		log.Error("invoice adapter could not resolve ledger customer",
			connector.Field{Key: "invoice", Value: getString(src, "id")},
			connector.Field{Key: "customer", Value: getString(src, "customer")},
			connector.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	var lines []map[string]any
	for _, raw := range getSlice(src, "lines.data") {
		line, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		planID := getString(line, "plan.id")
		item, err := a.Ledger.Read(ctx, intuit.Item, planID)
		if err != nil {
			log.Error("invoice adapter could not resolve ledger item",
				connector.Field{Key: "invoice", Value: getString(src, "id")},
				connector.Field{Key: "plan", Value: planID},
				connector.Field{Key: "lines_so_far", Value: len(lines)},
				connector.Field{Key: "error", Value: err.Error()},
			)
			if errors.Is(err, connector.ErrNotFound) {
				return nil, fmt.Errorf("invoice line plan %s has no matching ledger item: %w",
					planID, connector.ErrUnmappedEntity)
			}
			return nil, err
		}

		description := getString(line, "description")
		if description == "" {
			description = getString(line, "plan.nickname")
		}
		amount := money.ToMajor(getMinor(line, "amount"))

		lines = append(lines, map[string]any{
			"DetailType":  "SalesItemLineDetail",
			"Description": description,
			"Amount":      amount,
			"SalesItemLineDetail": map[string]any{
				"ItemRef": map[string]any{
					"value": item["Id"],
				},
				"Qty":       1,
				"UnitPrice": amount,
			},
		})
	}

	lines = append(lines, a.discountLines(src, log)...)

	return map[string]any{
		"DocNumber": stripeid.Normalize(getString(src, "id"), intuit.Invoice.RefLength),
		"CustomerRef": map[string]any{
			"value": customer["Id"],
		},
		"Line": lines,
	}, nil
}

// discountLines flattens an invoice discount into synthetic lines. Only
// percent-based coupons are translated; fixed-amount coupons are parsed
// but deliberately not emitted, matching the behavior this relay has
// always had. A warning makes the gap visible in the logs.
func (a *Invoice) discountLines(src map[string]any, log connector.Logger) []map[string]any {
	coupon := getMap(src, "discount.coupon")
	if coupon == nil || !getBool(src, "discount.coupon.valid") {
		return nil
	}

	percent := getFloat(src, "discount.coupon.percent_off")
	if percent <= 0 {
		if getMinor(src, "discount.coupon.amount_off") > 0 {
			log.Warn("fixed-amount coupon not translated to ledger",
				connector.Field{Key: "invoice", Value: getString(src, "id")},
				connector.Field{Key: "coupon", Value: getString(src, "discount.coupon.id")},
			)
		}
		return nil
	}

	return []map[string]any{
		{
			"DetailType": "DescriptionOnly",
			"Description": fmt.Sprintf("Coupon: %s [%s]",
				getString(src, "discount.coupon.name"), getString(src, "discount.coupon.id")),
		},
		{
			"DetailType": "DiscountLineDetail",
			"DiscountLineDetail": map[string]any{
				"PercentBased":    true,
				"DiscountPercent": percent,
			},
		},
	}
}
