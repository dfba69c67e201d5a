package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func planSource() map[string]any {
	return map[string]any{
		"id":          "plan_XY1",
		"active":      true,
		"nickname":    "Monthly",
		"description": "Monthly subscription",
		"product": map[string]any{
			"id":   "prod_AB",
			"name": "Widget Pro",
		},
	}
}

func TestPlanFromCreate(t *testing.T) {
	adapter := Plan{Account: AccountRef{ID: "1", Name: "Services"}}

	got := adapter.From(planSource(), MethodCreate)

	// The create shape carries the category prefix that groups the Item
	// under its parent Product.
	assert.Equal(t, "Widget Pro [prod_AB]:Widget Pro [Monthly]", got["Name"])
	assert.Equal(t, "prod_AB.plan_XY1", got["Sku"])
	assert.Equal(t, "Service", got["Type"])
	assert.Equal(t, true, got["Active"])
	assert.Equal(t, "Monthly subscription", got["Description"])
	assert.Equal(t, map[string]any{"name": "Services", "value": "1"}, got["IncomeAccountRef"])
}

func TestPlanFromUpdate(t *testing.T) {
	adapter := Plan{Account: AccountRef{ID: "1", Name: "Services"}}

	got := adapter.From(planSource(), MethodUpdate)

	// The update API rejects the colon separator, so the prefix is dropped.
	assert.Equal(t, "Widget Pro [Monthly]", got["Name"])
	assert.Equal(t, "prod_AB.plan_XY1", got["Sku"])
}

func TestProductFrom(t *testing.T) {
	got := Product{}.From(map[string]any{
		"id":   "prod_AB",
		"name": "Widget Pro",
	})

	assert.Equal(t, "Widget Pro [prod_AB]", got["Name"])
	assert.Equal(t, "Category", got["Type"])
}
