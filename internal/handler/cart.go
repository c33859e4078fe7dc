package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// GetCart returns items, totals and the coupon selection.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	h.respondCart(w, r, http.StatusOK, id, e)
}

// AddItem adds a catalog product, or a client-assembled box for negative
// ids.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	req, err := h.decodeAddItem(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	snap := cart.Product{
		ID:           req.ProductID,
		Name:         req.Name,
		SpecialPrice: req.SpecialPrice,
		MRPPrice:     req.MRPPrice,
		ImageURL:     req.ImageURL,
	}
	if !snap.IsCustomBox() {
		p, err := h.products.GetByID(r.Context(), req.ProductID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		snap = p.Snapshot()
	}

	if err := e.AddItem(r.Context(), snap, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, id, e)
}

// UpdateItem sets the quantity of a line; zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	productID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.decodeUpdateItem(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := e.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, id, e)
}

// RemoveItem drops a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	productID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := e.RemoveItem(r.Context(), productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, id, e)
}

// ClearCart empties the cart and its coupon selection.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	if err := e.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, id, e)
}

// SetCustomer sets or clears the customer coupons are evaluated for.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	req, err := h.decodeCustomer(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := e.SetCustomerID(r.Context(), req.CustomerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, id, e)
}

// ApplyCoupon applies a code by hand. A rejected code still answers 200
// with success false and the reason in message.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	req, err := h.decodeCoupon(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := e.ApplyCouponByCode(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Rejected(r.Context(), res)
	}
	zctx.From(r.Context()).Debug("Apply coupon",
		zap.String("code", req.Code),
		zap.Bool("success", res.Success),
	)

	view, err := h.view(r, id, e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("success", func(enc *jx.Encoder) { enc.Bool(res.Success) })
			enc.Field("message", func(enc *jx.Encoder) { enc.Str(res.Message) })
			enc.Field("cart", func(enc *jx.Encoder) { h.encodeCart(enc, view) })
		})
	})
}

// RemoveCoupon removes the applied coupon and pauses automatic selection
// until the cart changes.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine) {
	removed, err := e.RemoveCoupon(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, r, &apiError{status: http.StatusNotFound, message: "coupon is not applied"})
		return
	}
	h.respondCart(w, r, http.StatusOK, id, e)
}

// ListCoupons returns the coupons visible to the cart's customer with their
// eligibility against the current items.
func (h *Handler) ListCoupons(w http.ResponseWriter, _ *http.Request, _ string, e *pricing.Engine) {
	offers := e.VisibleCoupons()
	writeJSON(w, http.StatusOK, func(enc *jx.Encoder) {
		enc.Arr(func(enc *jx.Encoder) {
			for _, o := range offers {
				encodeOffer(enc, o)
			}
		})
	})
}

func (h *Handler) view(r *http.Request, id string, e *pricing.Engine) (cartView, error) {
	totals, err := e.Totals(r.Context())
	if err != nil {
		return cartView{}, err
	}
	return cartView{
		sessionID: id,
		items:     e.Items(),
		sel:       e.Selection(),
		totals:    totals,
		customer:  e.CustomerID(),
	}, nil
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, status int, id string, e *pricing.Engine) {
	v, err := h.view(r, id, e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, func(enc *jx.Encoder) { h.encodeCart(enc, v) })
}
