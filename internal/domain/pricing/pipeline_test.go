package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

func TestCompute(t *testing.T) {
	deliveryFree := coupon.Coupon{Code: "SHIPFREE", DiscountType: coupon.DiscountDeliveryFree}
	flat500 := coupon.Coupon{Code: "FLAT500", DiscountType: coupon.DiscountFixed, DiscountValue: dec("500")}

	tests := []struct {
		name       string
		cfg        Config
		itemsTotal string
		applied    *coupon.Coupon
		discount   string
		subtotal   string
		delivery   string
		final      string
	}{
		{
			name:       "empty cart still charged delivery",
			cfg:        DefaultConfig(),
			itemsTotal: "0",
			discount:   "0", subtotal: "0", delivery: "50", final: "50",
		},
		{
			name:       "below threshold",
			cfg:        DefaultConfig(),
			itemsTotal: "499.99",
			discount:   "0", subtotal: "499.99", delivery: "50", final: "549.99",
		},
		{
			name:       "exactly at threshold",
			cfg:        DefaultConfig(),
			itemsTotal: "500",
			discount:   "0", subtotal: "500", delivery: "0", final: "500",
		},
		{
			name:       "discount drops subtotal below threshold",
			cfg:        DefaultConfig(),
			itemsTotal: "520",
			applied:    &save10,
			discount:   "52", subtotal: "468", delivery: "50", final: "518",
		},
		{
			name:       "fixed discount larger than items total",
			cfg:        DefaultConfig(),
			itemsTotal: "300",
			applied:    &flat500,
			discount:   "300", subtotal: "0", delivery: "50", final: "50",
		},
		{
			name:       "delivery_free ignored by default",
			cfg:        DefaultConfig(),
			itemsTotal: "200",
			applied:    &deliveryFree,
			discount:   "0", subtotal: "200", delivery: "50", final: "250",
		},
		{
			name: "delivery_free waives delivery when enabled",
			cfg: func() Config {
				c := DefaultConfig()
				c.WaiveDeliveryForDeliveryFree = true
				return c
			}(),
			itemsTotal: "200",
			applied:    &deliveryFree,
			discount:   "0", subtotal: "200", delivery: "0", final: "200",
		},
		{
			name: "custom delivery settings",
			cfg: Config{
				DeliveryCharge:        decimal.NewFromInt(30),
				FreeDeliveryThreshold: decimal.NewFromInt(1000),
			},
			itemsTotal: "999",
			discount:   "0", subtotal: "999", delivery: "30", final: "1029",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.cfg, dec(tt.itemsTotal), tt.applied)

			assertDec(t, tt.itemsTotal, got.ItemsTotal)
			assertDec(t, tt.discount, got.CouponDiscount)
			assertDec(t, tt.subtotal, got.SubtotalAfterDiscount)
			assertDec(t, tt.delivery, got.DeliveryCharge)
			assertDec(t, tt.final, got.FinalTotal)
			assert.True(t, got.SubtotalAfterDiscount.Add(got.DeliveryCharge).Equal(got.FinalTotal))
		})
	}
}
