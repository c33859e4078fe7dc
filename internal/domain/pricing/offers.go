package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// Offer is a browsable coupon with its standing against the current cart.
type Offer struct {
	Coupon coupon.Coupon
	// Reason is the failed check when the coupon is not eligible yet.
	Reason error
	// Discount is what the coupon would take off the current items total.
	Discount decimal.Decimal
	Applied  bool
}

// Eligible reports whether the coupon could be applied right now.
func (o Offer) Eligible() bool { return o.Reason == nil }

// VisibleCoupons lists the coupons the current customer may browse, in
// catalog order. It returns nil until the catalog is loaded.
func (e *Engine) VisibleCoupons() []Offer {
	if !e.catalog.IsLoaded() {
		return nil
	}

	e.mu.Lock()
	itemsTotal := e.cart.ItemsTotal()
	customer := cloneID(e.customer)
	applied := e.sel.AppliedCode()
	e.mu.Unlock()

	now := e.now()
	visible := coupon.Visible(e.catalog.All(), customer, now)
	offers := make([]Offer, 0, len(visible))
	for _, c := range visible {
		offers = append(offers, Offer{
			Coupon:   c,
			Reason:   coupon.Check(c, itemsTotal, customer, now),
			Discount: coupon.ComputeDiscount(c, itemsTotal),
			Applied:  applied != "" && c.Matches(applied),
		})
	}
	return offers
}
