package coupon

import "time"

// Visible filters coupons down to the ones a customer may browse: unexpired
// public coupons plus unexpired customer-specific coupons naming the
// customer. Hidden coupons are never listed but remain redeemable by code.
func Visible(coupons []Coupon, customerID *int64, now time.Time) []Coupon {
	var out []Coupon
	for _, c := range coupons {
		if c.Expired(now) {
			continue
		}
		switch c.Visibility {
		case VisibilityPublic:
			out = append(out, c)
		case VisibilitySpecificCustomer:
			if customerID != nil && c.AllowedCustomerIDs.Contains(*customerID) {
				out = append(out, c)
			}
		}
	}
	return out
}
