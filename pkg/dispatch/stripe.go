package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

// StripeProducts implements ProductFetcher over the Stripe API.
type StripeProducts struct {
	client *stripe.Client
}

// NewStripeProducts creates a product fetcher for the given API key.
func NewStripeProducts(apiKey string) (*StripeProducts, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe API key is required")
	}
	return &StripeProducts{client: stripe.NewClient(apiKey)}, nil
}

// FetchProduct retrieves a product and flattens it back to the loosely
// typed shape the adapters consume.
func (s *StripeProducts) FetchProduct(ctx context.Context, id string) (map[string]any, error) {
	product, err := s.client.V1Products.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe product retrieve: %w", err)
	}

	raw, err := json.Marshal(product)
	if err != nil {
		return nil, fmt.Errorf("stripe product encode: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("stripe product decode: %w", err)
	}
	return obj, nil
}
