package order

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/money"
)

// Encode writes the order summary object used by the API and the order
// events topic.
func Encode(e *jx.Encoder, o *Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customer_id")
	if o.CustomerID != nil {
		e.Int64(*o.CustomerID)
	} else {
		e.Null()
	}
	e.FieldStart("coupon_code")
	if o.CouponCode != "" {
		e.Str(o.CouponCode)
	} else {
		e.Null()
	}

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(it.ProductID)
		e.FieldStart("product_name")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price_at_order")
		money.EncodeDecimal(e, it.PriceAtOrder)
		e.FieldStart("total")
		money.EncodeDecimal(e, it.Total)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	money.EncodeDecimal(e, o.Subtotal)
	e.FieldStart("coupon_discount")
	money.EncodeDecimal(e, o.CouponDiscount)
	e.FieldStart("subtotal_after_discount")
	money.EncodeDecimal(e, o.SubtotalAfterDiscount)
	e.FieldStart("delivery_charge")
	money.EncodeDecimal(e, o.DeliveryCharge)
	e.FieldStart("final_total")
	money.EncodeDecimal(e, o.FinalTotal)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}

// Marshal returns the JSON form of o.
func Marshal(o *Order) []byte {
	var e jx.Encoder
	Encode(&e, o)
	return e.Bytes()
}
