// Package pricing derives cart totals and keeps the coupon selection of a
// shopping session consistent with the cart, the customer and the catalog.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/money"
)

// Config holds the runtime pricing constants.
type Config struct {
	// DeliveryCharge is the flat charge added below the free delivery threshold.
	DeliveryCharge decimal.Decimal
	// FreeDeliveryThreshold is the discounted subtotal from which delivery is free.
	FreeDeliveryThreshold decimal.Decimal
	// CurrencySymbol prefixes amounts in user-facing messages.
	CurrencySymbol string
	// WaiveDeliveryForDeliveryFree makes an applied delivery_free coupon
	// zero the delivery charge. Off by default: delivery_free coupons then
	// carry no pricing effect at all.
	WaiveDeliveryForDeliveryFree bool
}

// DefaultConfig returns the storefront defaults: ₹50 delivery under ₹500.
func DefaultConfig() Config {
	return Config{
		DeliveryCharge:        decimal.NewFromInt(50),
		FreeDeliveryThreshold: decimal.NewFromInt(500),
		CurrencySymbol:        "₹",
	}
}

// Totals are the derived amounts of a cart. They are never stored.
type Totals struct {
	ItemsTotal            decimal.Decimal
	CouponDiscount        decimal.Decimal
	SubtotalAfterDiscount decimal.Decimal
	DeliveryCharge        decimal.Decimal
	FinalTotal            decimal.Decimal
}

// Compute runs the pricing pipeline for an items total and the coupon that
// survived re-validation, or nil when none applies.
func Compute(cfg Config, itemsTotal decimal.Decimal, applied *coupon.Coupon) Totals {
	discount := decimal.Zero
	if applied != nil {
		discount = coupon.ComputeDiscount(*applied, itemsTotal)
	}

	subtotal := money.FloorAtZero(itemsTotal.Sub(discount))

	delivery := cfg.DeliveryCharge
	switch {
	case subtotal.GreaterThanOrEqual(cfg.FreeDeliveryThreshold):
		delivery = decimal.Zero
	case applied != nil && applied.WaivesDelivery() && cfg.WaiveDeliveryForDeliveryFree:
		delivery = decimal.Zero
	}

	return Totals{
		ItemsTotal:            itemsTotal,
		CouponDiscount:        discount,
		SubtotalAfterDiscount: subtotal,
		DeliveryCharge:        delivery,
		FinalTotal:            subtotal.Add(delivery),
	}
}
