package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Every stored amount in this codebase is an integer in minor units
// (paise for INR). Conversion to and from major units happens only at
// display/reporting boundaries, through this package.

var hundred = decimal.NewFromInt(100)

// ToMinor converts a major-unit decimal amount ("99.50") to minor units.
// Rounds to the nearest minor unit.
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts minor units to a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// MajorString renders minor units as a plain two-decimal string ("99.50"),
// the format used for the raw_* twins in summary totals.
func MajorString(minor int64) string {
	return FromMinor(minor).StringFixed(2)
}

// Format renders minor units with a currency symbol for logs and messages.
func Format(currency string, minor int64) string {
	major := MajorString(minor)
	switch currency {
	case "INR":
		return "₹" + major
	case "EUR":
		return "€" + major
	case "USD":
		return "$" + major
	default:
		return fmt.Sprintf("%s %s", major, currency)
	}
}
