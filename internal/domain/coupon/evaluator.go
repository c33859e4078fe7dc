package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/money"
)

// Check evaluates a coupon against a subtotal, an optional customer and the
// current time. It returns nil when the coupon is eligible, or the first
// failing reason among ErrCouponExpired, ErrBelowMinimum, ErrLoginRequired
// and ErrNotForCustomer.
func Check(c Coupon, subtotal decimal.Decimal, customerID *int64, now time.Time) error {
	if c.Expired(now) {
		return ErrCouponExpired
	}
	if subtotal.LessThan(c.MinOrderValue) {
		return ErrBelowMinimum
	}
	if c.Visibility == VisibilitySpecificCustomer {
		if customerID == nil {
			return ErrLoginRequired
		}
		if !c.AllowedCustomerIDs.Contains(*customerID) {
			return ErrNotForCustomer
		}
	}
	return nil
}

// IsEligible reports whether Check passes.
func IsEligible(c Coupon, subtotal decimal.Decimal, customerID *int64, now time.Time) bool {
	return Check(c, subtotal, customerID, now) == nil
}

// ComputeDiscount returns the monetary discount of c on subtotal, rounded to
// two decimal places and bounded by [0, subtotal].
func ComputeDiscount(c Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountFixed:
		amount = c.DiscountValue
	case DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(money.Hundred)
	default:
		amount = decimal.Zero
	}
	return money.Clamp(amount.Round(2), subtotal)
}

// WaivesDelivery reports whether the coupon removes the delivery charge.
func (c Coupon) WaivesDelivery() bool {
	return c.DiscountType == DiscountDeliveryFree
}

// Eligible filters coupons down to those passing Check, preserving order.
func Eligible(coupons []Coupon, subtotal decimal.Decimal, customerID *int64, now time.Time) []Coupon {
	var out []Coupon
	for _, c := range coupons {
		if IsEligible(c, subtotal, customerID, now) {
			out = append(out, c)
		}
	}
	return out
}

// PickBest returns the coupon with the strictly largest discount on
// subtotal. Ties keep the earliest coupon. A coupon that discounts nothing is
// never picked, so ok is false when no coupon yields a positive discount.
func PickBest(coupons []Coupon, subtotal decimal.Decimal) (best Coupon, discount decimal.Decimal, ok bool) {
	discount = decimal.Zero
	for _, c := range coupons {
		d := ComputeDiscount(c, subtotal)
		if d.GreaterThan(discount) {
			best, discount, ok = c, d, true
		}
	}
	return best, discount, ok
}
