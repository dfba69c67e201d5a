package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/solarix/connector/pkg/intuit"
	"github.com/solarix/connector/pkg/stripeid"
)

// Customer converts a Stripe Customer object into a QuickBooks Customer
// payload.
//
// Stripe: https://stripe.com/docs/api/customers/object
// Intuit: https://developer.intuit.com/app/developer/qbo/docs/api/accounting/most-commonly-used/customer
type Customer struct{}

// From maps the source object. The normalized Stripe id is embedded in
// DisplayName because that column is the only natural key later lookups
// can search.
func (Customer) From(src map[string]any) map[string]any {
	name := getString(src, "name")
	id := getString(src, "id")

	notes, _ := json.Marshal(map[string]any{
		"stripe": map[string]any{
			"id":       id,
			"username": getString(src, "metadata.username"),
		},
	})

	return map[string]any{
		"PrimaryEmailAddr": map[string]any{
			"Address": getString(src, "email"),
		},
		"DisplayName": fmt.Sprintf("%s [%s]", name, stripeid.Normalize(id, intuit.Customer.RefLength)),
		"GivenName":   name,
		"Notes":       string(notes),
		"PrimaryPhone": map[string]any{
			"FreeFormNumber": getString(src, "phone"),
		},
		"CompanyName": getString(src, "metadata.company_name"),
		"BillAddr": map[string]any{
			"City":                   getString(src, "address.city"),
			"Line1":                  getString(src, "address.line1"),
			"Line2":                  getString(src, "address.line2"),
			"PostalCode":             getString(src, "address.postal_code"),
			"Country":                getString(src, "address.country"),
			"CountrySubDivisionCode": getString(src, "address.state"),
		},
	}
}
