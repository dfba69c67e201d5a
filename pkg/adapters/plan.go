package adapters

import "fmt"

// Plan converts a Stripe Plan object into a QuickBooks service Item
// payload. The source must carry full product data under "product"; the
// dispatcher fetches it before invoking the adapter, since Stripe plan
// objects embed only the product id.
//
// Stripe: https://stripe.com/docs/api/plans/object
// Intuit: https://developer.intuit.com/app/developer/qbo/docs/api/accounting/most-commonly-used/item
type Plan struct {
	// Account is the income account assigned to created Items.
	Account AccountRef
}

// From maps the source object. On create the Name carries the
// colon-separated category prefix that groups the Item under its parent
// Product; the update API rejects that separator, so the update shape
// drops the prefix.
func (a Plan) From(src map[string]any, method Method) map[string]any {
	productName := getString(src, "product.name")
	productID := getString(src, "product.id")
	nickname := getString(src, "nickname")

	obj := map[string]any{
		"Active":      getBool(src, "active"),
		"Description": getString(src, "description"),
		"IncomeAccountRef": map[string]any{
			"name":  a.Account.Name,
			"value": a.Account.ID,
		},
		"Name": fmt.Sprintf("%s [%s]:%s [%s]", productName, productID, productName, nickname),
		"Sku":  fmt.Sprintf("%s.%s", productID, getString(src, "id")),
		"Type": "Service",
	}
	if method == MethodUpdate {
		obj["Name"] = fmt.Sprintf("%s [%s]", productName, nickname)
	}
	return obj
}
