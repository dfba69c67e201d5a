// Package adapters maps billing-provider payloads into ledger payloads.
// Each adapter is pure with respect to its input except where it must
// resolve an already-synced related entity in the ledger (invoice and
// payment adapters resolve customer and item references).
//
// Payloads stay loosely typed maps on both sides: the provider's webhook
// objects and the ledger's records are remote schemas the relay does not
// own, and field access goes through dotted-path helpers instead of
// struct bindings that would silently drop unknown fields.
package adapters

import (
	"context"
	"strings"

	"github.com/solarix/connector/pkg/intuit"
)

// Method tells shape-sensitive adapters whether the output feeds a create
// or an update; the ledger rejects category separators in names on update
// while requiring them on create.
type Method string

const (
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
)

// Resolver looks up an already-synced entity in the ledger. Satisfied by
// *intuit.Client.
type Resolver interface {
	Read(ctx context.Context, t intuit.EntityType, id string) (intuit.Entity, error)
}

// AccountRef identifies the income account assigned to service Items the
// relay creates.
type AccountRef struct {
	ID   string
	Name string
}

// get walks a dotted path through nested maps and returns nil when any
// segment is missing or not an object.
func get(src map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var cur any = src
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func getString(src map[string]any, path string) string {
	s, _ := get(src, path).(string)
	return s
}

func getBool(src map[string]any, path string) bool {
	b, _ := get(src, path).(bool)
	return b
}

func getMap(src map[string]any, path string) map[string]any {
	m, _ := get(src, path).(map[string]any)
	return m
}

func getSlice(src map[string]any, path string) []any {
	s, _ := get(src, path).([]any)
	return s
}

// getMinor reads an integer minor-unit amount. Decoded JSON numbers
// arrive as float64.
func getMinor(src map[string]any, path string) int64 {
	switch v := get(src, path).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func getFloat(src map[string]any, path string) float64 {
	switch v := get(src, path).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
