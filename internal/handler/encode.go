package handler

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/money"
)

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("short_description", func(e *jx.Encoder) { e.Str(p.ShortDescription) })
		e.Field("mrp_price", func(e *jx.Encoder) { money.EncodeDecimal(e, p.MRPPrice) })
		e.Field("special_price", func(e *jx.Encoder) { money.EncodeDecimal(e, p.SpecialPrice) })
		e.Field("thumbnail_image", func(e *jx.Encoder) { e.Str(h.imageURL(p.ThumbnailImage)) })
		e.Field("categories", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range p.Categories {
					e.Str(c)
				}
			})
		})
		if p.Tag != "" {
			e.Field("tag", func(e *jx.Encoder) { e.Str(p.Tag) })
		}
	})
}

func (h *Handler) imageURL(path string) string {
	if path == "" {
		return ""
	}
	return h.imageBaseURL + path
}

func (h *Handler) encodeLineItem(e *jx.Encoder, li cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(li.Product.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(li.Product.Name) })
				e.Field("special_price", func(e *jx.Encoder) { e.Str(li.Product.SpecialPrice) })
				e.Field("mrp_price", func(e *jx.Encoder) { e.Str(li.Product.MRPPrice) })
				e.Field("thumbnail_image", func(e *jx.Encoder) { e.Str(h.imageURL(li.Product.ImageURL)) })
			})
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		e.Field("total", func(e *jx.Encoder) { money.EncodeDecimal(e, li.Total()) })
	})
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { money.EncodeDecimal(e, t.ItemsTotal) })
		e.Field("coupon_discount", func(e *jx.Encoder) { money.EncodeDecimal(e, t.CouponDiscount) })
		e.Field("subtotal_after_discount", func(e *jx.Encoder) { money.EncodeDecimal(e, t.SubtotalAfterDiscount) })
		e.Field("delivery_charge", func(e *jx.Encoder) { money.EncodeDecimal(e, t.DeliveryCharge) })
		e.Field("final_total", func(e *jx.Encoder) { money.EncodeDecimal(e, t.FinalTotal) })
	})
}

type cartView struct {
	sessionID string
	items     []cart.LineItem
	sel       coupon.Selection
	totals    pricing.Totals
	customer  *int64
}

func (h *Handler) encodeCart(e *jx.Encoder, v cartView) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("session_id", func(e *jx.Encoder) { e.Str(v.sessionID) })
		e.Field("customer_id", func(e *jx.Encoder) {
			if v.customer == nil {
				e.Null()
				return
			}
			e.Int64(*v.customer)
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range v.items {
					h.encodeLineItem(e, li)
				}
			})
		})
		e.Field("summary", func(e *jx.Encoder) { encodeTotals(e, v.totals) })
		e.Field("applied_coupon", func(e *jx.Encoder) {
			if v.sel.Applied == nil {
				e.Null()
				return
			}
			coupon.Encode(e, *v.sel.Applied)
		})
		e.Field("manual_override", func(e *jx.Encoder) { e.Bool(v.sel.ManualOverride != "") })
		e.Field("auto_apply_paused", func(e *jx.Encoder) { e.Bool(v.sel.SuppressAutoApply) })
	})
}

func encodeOffer(e *jx.Encoder, o pricing.Offer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("coupon", func(e *jx.Encoder) { coupon.Encode(e, o.Coupon) })
		e.Field("eligible", func(e *jx.Encoder) { e.Bool(o.Eligible()) })
		if o.Reason != nil {
			e.Field("reason", func(e *jx.Encoder) { e.Str(o.Reason.Error()) })
		}
		e.Field("discount", func(e *jx.Encoder) { money.EncodeDecimal(e, o.Discount) })
		e.Field("applied", func(e *jx.Encoder) { e.Bool(o.Applied) })
	})
}
