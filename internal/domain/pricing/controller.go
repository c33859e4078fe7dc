package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// ErrEmptyCart rejects a manual coupon or a checkout while the cart has no
// items.
var ErrEmptyCart = errors.New("cart is empty")

// ApplyResult is the outcome of a manual coupon entry. A rejected code is
// not an error: Success is false, Message explains why and Reason holds the
// matching coupon sentinel error.
type ApplyResult struct {
	Success bool
	Message string
	Coupon  *coupon.Coupon
	Reason  error
}

// ApplyCouponByCode applies the coupon named by code as a manual override.
// On rejection the selection is left untouched. It waits for the catalog to
// finish loading; a non-nil error is only returned when ctx ends first or
// persistence fails.
func (e *Engine) ApplyCouponByCode(ctx context.Context, code string) (ApplyResult, error) {
	if err := e.catalog.Wait(ctx); err != nil {
		return ApplyResult{}, errors.Wrap(err, "wait for coupon catalog")
	}

	var res ApplyResult
	err := e.run(ctx, func(o *op) error {
		c, ok := e.catalog.Find(code)
		if !ok {
			res = ApplyResult{Message: e.rejectMessage(code, coupon.Coupon{}, coupon.ErrCouponNotFound), Reason: coupon.ErrCouponNotFound}
			return nil
		}

		itemsTotal := e.cart.ItemsTotal()
		if err := coupon.Check(c, itemsTotal, e.customer, e.now()); err != nil {
			res = ApplyResult{Message: e.rejectMessage(code, c, err), Reason: err}
			return nil
		}
		if itemsTotal.IsZero() {
			res = ApplyResult{Message: e.rejectMessage(code, c, ErrEmptyCart), Reason: ErrEmptyCart}
			return nil
		}

		e.sel = coupon.Selection{Applied: &c, ManualOverride: c.Code}
		o.emit(Event{Kind: EventManualApplied, Code: c.Code})
		applied := c
		res = ApplyResult{
			Success: true,
			Message: e.appliedMessage(c),
			Coupon:  &applied,
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	if res.Success {
		e.lg.Info("Coupon applied manually", zap.String("code", res.Coupon.Code))
	} else {
		e.lg.Debug("Coupon rejected", zap.String("code", code), zap.Error(res.Reason))
	}
	return res, nil
}

// resolveStored swaps a restored coupon for its current catalog definition
// once the catalog is loaded. A coupon that left the catalog is dropped.
func (e *Engine) resolveStored(o *op) {
	if e.resolved || !e.catalog.IsLoaded() {
		return
	}
	e.resolved = true

	if e.sel.Applied == nil {
		return
	}
	c, ok := e.catalog.Find(e.sel.Applied.Code)
	if !ok {
		e.lg.Warn("Stored coupon no longer in catalog, clearing", zap.String("code", e.sel.Applied.Code))
		o.emit(Event{Kind: EventInvalidated, Code: e.sel.Applied.Code, Reason: coupon.ErrCouponNotFound})
		e.sel = coupon.Selection{}
		o.selDirty = true
		return
	}
	e.sel.Applied = &c
	if e.sel.ManualOverride != "" {
		e.sel.ManualOverride = c.Code
	}
}

// reconcile is the auto-apply state machine. It runs after every operation
// and is the only place that picks coupons on the user's behalf.
func (e *Engine) reconcile(o *op) {
	itemsTotal := e.cart.ItemsTotal()
	if itemsTotal.IsZero() {
		if code := e.sel.AppliedCode(); code != "" {
			o.emit(Event{Kind: EventCleared, Code: code})
		}
		e.sel = coupon.Selection{}
		return
	}
	if !e.catalog.IsLoaded() || e.sel.SuppressAutoApply {
		return
	}

	now := e.now()
	if override := e.sel.ManualOverride; override != "" {
		c, ok := e.catalog.Find(override)
		reason := coupon.ErrCouponNotFound
		if ok {
			reason = coupon.Check(c, itemsTotal, e.customer, now)
		}
		if reason != nil {
			e.lg.Info("Manual coupon no longer valid, pausing auto-apply",
				zap.String("code", override),
				zap.Error(reason),
			)
			o.emit(Event{Kind: EventInvalidated, Code: override, Reason: reason})
			e.sel = coupon.Selection{SuppressAutoApply: true}
			return
		}
		if e.sel.Applied == nil || !c.Matches(e.sel.Applied.Code) {
			o.emit(Event{Kind: EventManualApplied, Code: c.Code})
		}
		e.sel.Applied = &c
		return
	}

	eligible := coupon.Eligible(e.catalog.All(), itemsTotal, e.customer, now)
	best, discount, ok := coupon.PickBest(eligible, itemsTotal)
	if !ok {
		if code := e.sel.AppliedCode(); code != "" {
			o.emit(Event{Kind: EventCleared, Code: code})
			e.sel.Applied = nil
		}
		return
	}
	if e.sel.Applied != nil && best.Matches(e.sel.Applied.Code) {
		return
	}

	e.lg.Info("Auto-applied best coupon",
		zap.String("code", best.Code),
		zap.String("discount", discount.StringFixed(2)),
		zap.String("items_total", itemsTotal.StringFixed(2)),
	)
	o.emit(Event{Kind: EventAutoApplied, Code: best.Code})
	e.sel.Applied = &best
}

// totalsLocked is the pipeline with live re-validation of the applied
// coupon. A coupon failing its checks is dropped together with the manual
// override.
func (e *Engine) totalsLocked(o *op) Totals {
	itemsTotal := e.cart.ItemsTotal()
	if !e.catalog.IsLoaded() || e.sel.Applied == nil {
		return Compute(e.cfg, itemsTotal, nil)
	}

	applied := *e.sel.Applied
	if err := coupon.Check(applied, itemsTotal, e.customer, e.now()); err != nil {
		e.lg.Info("Applied coupon became invalid, removing",
			zap.String("code", applied.Code),
			zap.Error(err),
		)
		o.emit(Event{Kind: EventInvalidated, Code: applied.Code, Reason: err})
		e.sel = coupon.Selection{}
		return Compute(e.cfg, itemsTotal, nil)
	}
	return Compute(e.cfg, itemsTotal, &applied)
}
