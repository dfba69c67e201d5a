package dispatch

import (
	"context"
	"fmt"

	"github.com/solarix/connector/pkg/adapters"
	"github.com/solarix/connector/pkg/connector"
	"github.com/solarix/connector/pkg/intuit"
)

// Gateway is the slice of the ledger client the dispatcher drives.
// Satisfied by *intuit.Client.
type Gateway interface {
	Create(ctx context.Context, t intuit.EntityType, data intuit.Entity) (intuit.Entity, error)
	Read(ctx context.Context, t intuit.EntityType, id string) (intuit.Entity, error)
	Update(ctx context.Context, t intuit.EntityType, id string, data intuit.Entity) (intuit.Entity, error)
	Delete(ctx context.Context, t intuit.EntityType, id string) (intuit.Entity, error)
}

// ProductFetcher reads full product data from the billing provider.
// Stripe plan payloads embed only the product id, so plan jobs need this
// read-through before the adapter can run.
type ProductFetcher interface {
	FetchProduct(ctx context.Context, id string) (map[string]any, error)
}

// ServiceConfig configures the dispatch service.
type ServiceConfig struct {
	Ledger   Gateway
	Products ProductFetcher
	// Account is the income account for created service Items.
	Account adapters.AccountRef
	Logger  connector.Logger
}

// Service owns the adapters and binds them to gateway primitives, one
// binding per event kind.
type Service struct {
	ledger   Gateway
	products ProductFetcher
	log      connector.Logger

	customer adapters.Customer
	product  adapters.Product
	plan     adapters.Plan
	invoice  *adapters.Invoice
	payment  *adapters.Payment
}

// NewService creates the dispatch service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &connector.NoopLogger{}
	}
	return &Service{
		ledger:   cfg.Ledger,
		products: cfg.Products,
		log:      logger,
		plan:     adapters.Plan{Account: cfg.Account},
		invoice:  &adapters.Invoice{Ledger: cfg.Ledger, Log: logger},
		payment:  &adapters.Payment{Ledger: cfg.Ledger, Log: logger},
	}, nil
}

// Registry returns the full event-kind routing table. Deletions map onto
// deactivating updates for entity types the ledger cannot physically
// delete; that policy lives here, not in the gateway.
func (s *Service) Registry() *Registry {
	r := NewRegistry(s.log)

	r.Register(connector.CustomerCreated, "customerCreated", s.customerCreated)
	r.Register(connector.CustomerUpdated, "customerUpdated", s.customerUpdated)
	r.Register(connector.CustomerDeleted, "customerDeleted", s.customerDeleted)

	r.Register(connector.ProductCreated, "productCreated", s.productCreated)
	r.Register(connector.ProductUpdated, "productUpdated", s.productUpdated)
	r.Register(connector.ProductDeleted, "productDeleted", s.productDeleted)

	r.Register(connector.PlanCreated, "planCreated", s.planCreated)
	r.Register(connector.PlanUpdated, "planUpdated", s.planUpdated)
	r.Register(connector.PlanDeleted, "planDeleted", s.planDeleted)

	r.Register(connector.InvoiceCreated, "invoiceCreated", s.invoiceCreated)
	r.Register(connector.InvoiceUpdated, "invoiceUpdated", s.invoiceUpdated)
	r.Register(connector.InvoiceDeleted, "invoiceDeleted", s.invoiceDeleted)

	r.Register(connector.InvoicePaymentSucceeded, "invoicePaymentSucceeded", s.invoicePaymentSucceeded)

	r.Register(connector.PaymentIntentCreated, "paymentIntentCreated", s.noop)
	r.Register(connector.PaymentIntentSucceeded, "paymentIntentSucceeded", s.noop)

	return r
}

func (s *Service) customerCreated(ctx context.Context, ev connector.BillingEvent) error {
	_, err := s.ledger.Create(ctx, intuit.Customer, s.customer.From(ev.Payload))
	return err
}

func (s *Service) customerUpdated(ctx context.Context, ev connector.BillingEvent) error {
	_, err := s.ledger.Update(ctx, intuit.Customer, sourceID(ev), s.customer.From(ev.Payload))
	return err
}

func (s *Service) customerDeleted(ctx context.Context, ev connector.BillingEvent) error {
	return s.deactivate(ctx, intuit.Customer, sourceID(ev))
}

func (s *Service) productCreated(ctx context.Context, ev connector.BillingEvent) error {
	_, err := s.ledger.Create(ctx, intuit.Item, s.product.From(ev.Payload))
	return err
}

func (s *Service) productUpdated(ctx context.Context, ev connector.BillingEvent) error {
	_, err := s.ledger.Update(ctx, intuit.Item, sourceID(ev), s.product.From(ev.Payload))
	return err
}

func (s *Service) productDeleted(ctx context.Context, ev connector.BillingEvent) error {
	return s.deactivate(ctx, intuit.Item, sourceID(ev))
}

func (s *Service) planCreated(ctx context.Context, ev connector.BillingEvent) error {
	src, err := s.withProduct(ctx, ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.ledger.Create(ctx, intuit.Item, s.plan.From(src, adapters.MethodCreate))
	return err
}

func (s *Service) planUpdated(ctx context.Context, ev connector.BillingEvent) error {
	src, err := s.withProduct(ctx, ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.ledger.Update(ctx, intuit.Item, sourceID(ev), s.plan.From(src, adapters.MethodUpdate))
	return err
}

func (s *Service) planDeleted(ctx context.Context, ev connector.BillingEvent) error {
	return s.deactivate(ctx, intuit.Item, sourceID(ev))
}

func (s *Service) invoiceCreated(ctx context.Context, ev connector.BillingEvent) error {
	data, err := s.invoice.From(ctx, ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.ledger.Create(ctx, intuit.Invoice, data)
	return err
}

func (s *Service) invoiceUpdated(ctx context.Context, ev connector.BillingEvent) error {
	data, err := s.invoice.From(ctx, ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.ledger.Update(ctx, intuit.Invoice, sourceID(ev), data)
	return err
}

func (s *Service) invoiceDeleted(ctx context.Context, ev connector.BillingEvent) error {
	_, err := s.ledger.Delete(ctx, intuit.Invoice, sourceID(ev))
	return err
}

func (s *Service) invoicePaymentSucceeded(ctx context.Context, ev connector.BillingEvent) error {
	data, err := s.payment.From(ctx, ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.ledger.Create(ctx, intuit.Payment, data)
	return err
}

func (s *Service) noop(context.Context, connector.BillingEvent) error {
	return nil
}

// deactivate is the soft-delete path for entity types without true
// deletion support.
func (s *Service) deactivate(ctx context.Context, t intuit.EntityType, id string) error {
	_, err := s.ledger.Update(ctx, t, id, intuit.Entity{"Active": false})
	return err
}

// withProduct returns a copy of the plan payload with "product" replaced
// by full product data from the billing provider. A failed fetch fails
// the job; the retry policy re-drives it.
func (s *Service) withProduct(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if product, ok := payload["product"].(map[string]any); ok && product != nil {
		return payload, nil
	}

	productID, _ := payload["product"].(string)
	if productID == "" {
		return nil, fmt.Errorf("plan payload has no product reference")
	}
	if s.products == nil {
		return nil, fmt.Errorf("product fetcher not configured")
	}

	product, err := s.products.FetchProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetching product %s: %w", productID, err)
	}

	src := make(map[string]any, len(payload))
	for k, v := range payload {
		src[k] = v
	}
	src["product"] = product
	return src, nil
}

// sourceID extracts the provider object id from the event payload.
func sourceID(ev connector.BillingEvent) string {
	id, _ := ev.Payload["id"].(string)
	return id
}
