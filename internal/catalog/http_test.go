package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

const listing = `[
	{"id":"1","coupon_code":"SAVE10","discount_type":"percentage","discount_value":"10.00",
	 "min_order_value":"0.00","expiry_date":"2030-12-31 23:59:59","visibility":"public",
	 "display_text":"10% off","allowed_customer_ids":null},
	{"id":2,"coupon_code":"VIP20","discount_type":"percentage","discount_value":20,
	 "min_order_value":500,"expiry_date":null,"visibility":"specific_customer",
	 "allowed_customer_ids":"101, 102,abc"}
]`

func TestHTTPSource_FetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get_all_coupons", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listing))
	}))
	defer srv.Close()

	loc := time.FixedZone("IST", 5*3600+1800)
	src := NewHTTPSource(srv.Client(), srv.URL+"/api/get_all_coupons", 0, loc, zaptest.NewLogger(t))

	got, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "SAVE10", got[0].Code)
	require.NotNil(t, got[0].ExpiresAt)
	assert.Equal(t, time.Date(2030, 12, 31, 23, 59, 59, 0, loc), *got[0].ExpiresAt)

	assert.Equal(t, coupon.VisibilitySpecificCustomer, got[1].Visibility)
	assert.Nil(t, got[1].ExpiresAt)
	assert.Equal(t, []int64{101, 102}, got[1].AllowedCustomerIDs.IDs())
}

func TestHTTPSource_SkipsInvalidCoupon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"coupon_code":"SAVE10","discount_type":"percentage","discount_value":"10"},
			{"coupon_code":"BROKEN","discount_value":"5","expiry_date":"next tuesday"},
			{"coupon_code":"FLAT20","discount_value":"20"}
		]`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	got, err := NewHTTPSource(srv.Client(), srv.URL, 0, nil, zap.New(core)).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SAVE10", got[0].Code)
	assert.Equal(t, "FLAT20", got[1].Code)

	entries := logs.FilterMessage("Skipping invalid coupon").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "BROKEN", entries[0].ContextMap()["code"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["index"])
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "malformed body", status: http.StatusOK, body: `{"coupons":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPSource(srv.Client(), srv.URL, 0, nil, nil).FetchAll(context.Background())
			require.Error(t, err)
		})
	}
}

func TestHTTPSource_FailureLeavesCatalogEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := coupon.NewCatalog(zaptest.NewLogger(t))
	require.Error(t, c.Load(context.Background(), NewHTTPSource(srv.Client(), srv.URL, 0, nil, nil)))
	assert.True(t, c.IsLoaded())
	assert.Zero(t, c.Len())
}
