package adapters

import "fmt"

// Product converts a Stripe Product object into a QuickBooks Item payload.
// Products become Category items that group the child Plan items.
//
// Stripe: https://stripe.com/docs/api/products/object
// Intuit: https://developer.intuit.com/app/developer/qbo/docs/api/accounting/most-commonly-used/item
type Product struct{}

// From maps the source object.
func (Product) From(src map[string]any) map[string]any {
	return map[string]any{
		"Name": fmt.Sprintf("%s [%s]", getString(src, "name"), getString(src, "id")),
		"Type": "Category",
	}
}
