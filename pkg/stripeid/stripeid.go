// Package stripeid normalizes Stripe identifiers into lookup keys usable
// against QuickBooks natural-key columns.
//
// Stripe ids follow a `<prefix>_<random>` convention (cus_..., in_...,
// plan_...). QuickBooks has no foreign-key column, so the relay embeds the
// id inside display/reference fields, which are length limited (typically
// 20 characters). Normalize produces the bounded form used everywhere a
// foreign id is written to or searched for in the ledger.
package stripeid

import "strings"

// DefaultMaxLength matches the shortest natural-key column limit among the
// ledger entity types the relay writes to.
const DefaultMaxLength = 20

// Normalize converts a Stripe identifier into its canonical ledger lookup
// form: the raw id truncated to max runes. A max of zero or less applies
// DefaultMaxLength.
func Normalize(id string, max int) string {
	if max <= 0 {
		max = DefaultMaxLength
	}
	if len(id) > max {
		return id[:max]
	}
	return id
}

// IsForeign reports whether id looks like a Stripe identifier rather than a
// native QuickBooks integer id. QuickBooks assigns purely numeric ids;
// Stripe ids always carry a type prefix and underscore.
func IsForeign(id string) bool {
	if id == "" {
		return false
	}
	if strings.Contains(id, "_") {
		return true
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}

// Prefix returns the type prefix of a Stripe id ("cus" for "cus_ABC"), or
// the empty string when the id has none.
func Prefix(id string) string {
	i := strings.IndexByte(id, '_')
	if i <= 0 {
		return ""
	}
	return id[:i]
}
