package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/order"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/session"
	"github.com/xenking/kart-pricing/internal/storage/memory"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

type mockOrderRepo struct {
	orders []*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.orders = append(m.orders, o)
	return nil
}

// --- Helpers ---

type testServer struct {
	t       *testing.T
	handler http.Handler
	orders  *mockOrderRepo
	session string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	lg := zaptest.NewLogger(t)

	catalog := coupon.NewCatalog(lg)
	require.NoError(t, catalog.Load(context.Background(), coupon.Static(
		coupon.Coupon{
			Code: "SAVE10", DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			Visibility: coupon.VisibilityPublic,
		},
		coupon.Coupon{
			Code: "BIG50", DiscountType: coupon.DiscountFixed, DiscountValue: decimal.NewFromInt(50),
			MinOrderValue: decimal.NewFromInt(1000), Visibility: coupon.VisibilityPublic,
		},
	)))

	products := &mockProductRepo{products: []product.Product{{
		ID:             1,
		Name:           "Almonds 500g",
		MRPPrice:       decimal.RequireFromString("250.00"),
		SpecialPrice:   decimal.RequireFromString("200.00"),
		ThumbnailImage: "/img/almonds.jpg",
		Categories:     []string{"dry-fruits"},
	}}}
	orders := &mockOrderRepo{}

	sessions := session.NewManager(session.Config{Pricing: pricing.DefaultConfig()}, catalog, memory.NewStore(), lg)
	h := NewHandler(Config{ImageBaseURL: "https://cdn.example.com"}, products, sessions, order.NewService(orders, nil, lg), nil)

	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{t: t, handler: mux, orders: orders}
}

func (s *testServer) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if s.session != "" {
		req.Header.Set(SessionHeader, s.session)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if id := w.Header().Get(SessionHeader); id != "" {
		s.session = id
	}

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func summary(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	s, ok := body["summary"].(map[string]any)
	require.True(t, ok, "summary missing in %v", body)
	return s
}

// --- Tests ---

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "200.00", list[0]["special_price"])
	assert.Equal(t, "https://cdn.example.com/img/almonds.jpg", list[0]["thumbnail_image"])

	w, body := s.do(http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Almonds 500g", body["name"])

	w, body = s.do(http.MethodGet, "/api/products/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 404, body["code"])

	w, _ = s.do(http.MethodGet, "/api/products/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, s.session)
	assert.Equal(t, "50.00", summary(t, body)["final_total"])

	w, body = s.do(http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	sum := summary(t, body)
	assert.Equal(t, "400.00", sum["subtotal"])
	assert.Equal(t, "40.00", sum["coupon_discount"])
	assert.Equal(t, "410.00", sum["final_total"])
	applied, ok := body["applied_coupon"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SAVE10", applied["coupon_code"])

	w, body = s.do(http.MethodPost, "/api/cart/coupon", `{"code":"BIG50"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "minimum order of ₹1000.00")

	w, body = s.do(http.MethodDelete, "/api/cart/coupon/save10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["applied_coupon"])
	assert.Equal(t, true, body["auto_apply_paused"])

	w, _ = s.do(http.MethodDelete, "/api/cart/coupon/SAVE10", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(http.MethodPatch, "/api/cart/items/1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	sum = summary(t, body)
	assert.Equal(t, "60.00", sum["coupon_discount"])
	assert.Equal(t, "0.00", sum["delivery_charge"])
	assert.Equal(t, "540.00", sum["final_total"])

	w, body = s.do(http.MethodPost, "/api/cart/items", `{"product_id":-1,"quantity":1,"name":"My box","special_price":"120.50"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["items"], 2)

	w, body = s.do(http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["items"])
}

func TestAddItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: `{"product_id":`, status: http.StatusBadRequest},
		{name: "zero quantity", body: `{"product_id":1,"quantity":0}`, status: http.StatusBadRequest},
		{name: "missing product", body: `{"quantity":1}`, status: http.StatusBadRequest},
		{name: "unknown product", body: `{"product_id":42,"quantity":1}`, status: http.StatusNotFound},
		{name: "custom box without price", body: `{"product_id":-2,"quantity":1,"name":"Box"}`, status: http.StatusBadRequest},
		{name: "custom box bad price", body: `{"product_id":-2,"quantity":1,"name":"Box","special_price":"abc"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w, body := s.do(http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.EqualValues(t, tt.status, body["code"])
		})
	}
}

func TestInvalidSession(t *testing.T) {
	s := newTestServer(t)
	s.session = "not-a-uuid"

	w, _ := s.do(http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetCustomerAndCoupons(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":1}`)

	w, body := s.do(http.MethodPut, "/api/cart/customer", `{"customer_id":101}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 101, body["customer_id"])

	w, body = s.do(http.MethodPut, "/api/cart/customer", `{"customer_id":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["customer_id"])

	w, _ = s.do(http.MethodPut, "/api/cart/customer", `{"customer_id":-5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/cart/coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	var offers []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &offers))
	require.Len(t, offers, 2)
	assert.Equal(t, true, offers[0]["eligible"])
	assert.Equal(t, true, offers[0]["applied"])
	assert.Equal(t, false, offers[1]["eligible"])
	assert.Equal(t, "20.00", offers[0]["discount"])
}

func TestCheckout(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodPost, "/api/cart/checkout", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "cart is empty", body["message"])

	s.do(http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":2}`)
	w, body = s.do(http.MethodPost, "/api/cart/checkout", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SAVE10", body["coupon_code"])
	assert.Equal(t, "410.00", body["final_total"])
	require.Len(t, s.orders.orders, 1)

	_, body = s.do(http.MethodGet, "/api/cart", "")
	assert.Empty(t, body["items"])
}
