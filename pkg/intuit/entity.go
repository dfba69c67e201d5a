// Package intuit is the gateway to the QuickBooks Online v3 API: a
// generalized CRUD client, the OAuth2 token manager backing it, and the
// static descriptors that tell both which natural-key column locates each
// entity type when only a foreign billing id is known.
package intuit

// EntityType describes one QuickBooks entity kind the relay reads or
// writes. QueryColumn is the natural-key column searched when the native
// numeric id is unknown; RefLength bounds the foreign id embedded in that
// column; SupportsDelete distinguishes types with a real delete operation
// from those that can only be deactivated.
type EntityType struct {
	Name           string
	Endpoint       string
	QueryColumn    string
	RefLength      int
	SupportsDelete bool
}

var (
	Customer = EntityType{
		Name:        "Customer",
		Endpoint:    "customer",
		QueryColumn: "DisplayName",
		RefLength:   20,
	}

	Item = EntityType{
		Name:        "Item",
		Endpoint:    "item",
		QueryColumn: "Sku",
		RefLength:   20,
	}

	Invoice = EntityType{
		Name:           "Invoice",
		Endpoint:       "invoice",
		QueryColumn:    "DocNumber",
		RefLength:      20,
		SupportsDelete: true,
	}

	Payment = EntityType{
		Name:           "Payment",
		Endpoint:       "payment",
		QueryColumn:    "PaymentRefNum",
		RefLength:      20,
		SupportsDelete: true,
	}

	CompanyInfo = EntityType{
		Name:        "CompanyInfo",
		Endpoint:    "companyinfo",
		QueryColumn: "CompanyName",
		RefLength:   20,
	}
)

// Valid reports whether the descriptor is one of the declared entity types
// rather than a zero value.
func (t EntityType) Valid() bool {
	return t.Name != "" && t.Endpoint != ""
}
