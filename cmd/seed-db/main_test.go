package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// --- Mock implementations ---

type mockCouponStore struct {
	coupons []coupon.Coupon
}

func (m *mockCouponStore) Upsert(_ context.Context, c coupon.Coupon) error {
	m.coupons = append(m.coupons, c)
	return nil
}

// --- Tests ---

func TestDecodeProducts(t *testing.T) {
	products, err := decodeProducts([]byte(`[
		{"name":"Almonds","mrp_price":"450","special_price":399.5,"categories":["dry-fruits","snacks"],"extra":true},
		{"name":"Dates","special_price":"549.00","tag":"new"}
	]`))
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "Almonds", products[0].Name)
	assert.True(t, decimal.RequireFromString("399.5").Equal(products[0].SpecialPrice))
	assert.True(t, decimal.NewFromInt(450).Equal(products[0].MRPPrice))
	assert.Equal(t, []string{"dry-fruits", "snacks"}, products[0].Categories)
	assert.Equal(t, "new", products[1].Tag)
}

func TestDecodeProducts_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not an array", data: `{"name":"x"}`},
		{name: "missing name", data: `[{"special_price":"10"}]`},
		{name: "zero price", data: `[{"name":"Free lunch","special_price":"0"}]`},
		{name: "bad categories", data: `[{"name":"x","special_price":"1","categories":"a"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeProducts([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestSeedFileParses(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/products.json")
	require.NoError(t, err)

	products, err := decodeProducts(data)
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestSeedCoupons(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store := &mockCouponStore{}
	require.NoError(t, seedCoupons(context.Background(), store, now))

	byCode := map[string]coupon.Coupon{}
	for _, c := range store.coupons {
		byCode[c.Code] = c
	}

	assert.Equal(t, coupon.VisibilityHidden, byCode["FLAT20"].Visibility)
	assert.True(t, byCode["VIP20"].AllowedCustomerIDs.Contains(101))
	assert.True(t, byCode["OLDIE"].Expired(now))
	assert.False(t, byCode["MIN300"].Expired(now))
	assert.Equal(t, coupon.DiscountDeliveryFree, byCode["FREESHIP"].DiscountType)
}
