// Package money converts between the billing provider's integer minor
// units (cents) and the ledger's decimal major units.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMajor converts integer minor units into a major-unit string with
// exactly two decimal places: ToMajor(250) == "2.50".
func ToMajor(minor int64) string {
	return decimal.NewFromInt(minor).Div(hundred).StringFixed(2)
}

// ToMajorFloat converts integer minor units into a major-unit float for
// fields the ledger types as numeric rather than string.
func ToMajorFloat(minor int64) float64 {
	f, _ := decimal.NewFromInt(minor).Div(hundred).Float64()
	return f
}

// ToMinor converts a major-unit decimal string back into integer minor
// units, rounding half-up at the cent boundary.
func ToMinor(major string) (int64, error) {
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", major, err)
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}
