package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/order"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// Checkout turns the cart into an order and empties it.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, _ string, e *pricing.Engine) {
	o, err := h.checkout.Submit(r.Context(), e)
	if o == nil {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		// Stored but the cart could not be cleared.
		zctx.From(r.Context()).Warn("Order placed with stale cart", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, func(enc *jx.Encoder) { order.Encode(enc, o) })
}
