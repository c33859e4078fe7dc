package pricing

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/money"
)

func (e *Engine) appliedMessage(c coupon.Coupon) string {
	return fmt.Sprintf("Coupon %q applied successfully!", c.Code)
}

// rejectMessage renders the user-facing text for a failed manual apply.
// entered is the code as typed; c is the catalog coupon when one matched.
func (e *Engine) rejectMessage(entered string, c coupon.Coupon, reason error) string {
	switch {
	case errors.Is(reason, coupon.ErrCouponNotFound):
		return fmt.Sprintf("Coupon code %q is invalid.", entered)
	case errors.Is(reason, coupon.ErrCouponExpired):
		return fmt.Sprintf("Coupon %q has expired.", c.Code)
	case errors.Is(reason, coupon.ErrBelowMinimum):
		return fmt.Sprintf("Coupon %q requires a minimum order of %s. Your current total is %s.",
			c.Code,
			money.Format(e.cfg.CurrencySymbol, c.MinOrderValue),
			money.Format(e.cfg.CurrencySymbol, e.cart.ItemsTotal()),
		)
	case errors.Is(reason, coupon.ErrLoginRequired):
		return fmt.Sprintf("Coupon %q requires a logged-in account.", c.Code)
	case errors.Is(reason, coupon.ErrNotForCustomer):
		return fmt.Sprintf("Coupon %q is not available for your account.", c.Code)
	case errors.Is(reason, ErrEmptyCart):
		return fmt.Sprintf("Add items to your cart before applying coupon %q.", c.Code)
	default:
		return fmt.Sprintf("Coupon %q cannot be applied.", entered)
	}
}
