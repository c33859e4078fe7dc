// Package money holds the decimal helpers shared by the cart and coupon code.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Hundred is the percentage divisor.
	Hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Parse converts a stored price string into a decimal. Empty or unparsable
// input yields zero so a single malformed price never breaks a total.
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return zero
	}
	return d
}

// FloorAtZero clamps negative values to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

// Clamp bounds d to [0, upper].
func Clamp(d, upper decimal.Decimal) decimal.Decimal {
	return decimal.Min(FloorAtZero(d), FloorAtZero(upper))
}

// Format renders an amount with a currency symbol and two decimal places,
// e.g. "₹300.00".
func Format(symbol string, d decimal.Decimal) string {
	return symbol + d.StringFixed(2)
}
