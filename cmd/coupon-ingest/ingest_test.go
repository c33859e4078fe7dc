package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// --- Mock implementations ---

type mockStore struct {
	mu      sync.Mutex
	coupons map[string]coupon.Coupon
	err     error
}

func (m *mockStore) Upsert(_ context.Context, c coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.coupons == nil {
		m.coupons = map[string]coupon.Coupon{}
	}
	m.coupons[strings.ToUpper(c.Code)] = c
	return nil
}

// --- Helpers ---

func writeExport(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

// --- Tests ---

func TestParseRecord(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name    string
		line    string
		wantErr string
		check   func(t *testing.T, c coupon.Coupon)
	}{
		{
			name: "minimal fixed",
			line: "FLAT50;fixed;50",
			check: func(t *testing.T, c coupon.Coupon) {
				assert.Equal(t, "FLAT50", c.Code)
				assert.Equal(t, coupon.DiscountFixed, c.DiscountType)
				assert.True(t, decimal.NewFromInt(50).Equal(c.DiscountValue))
				assert.True(t, c.MinOrderValue.IsZero())
				assert.Nil(t, c.ExpiresAt)
				assert.Equal(t, coupon.VisibilityPublic, c.Visibility)
			},
		},
		{
			name: "full specific customer",
			line: " VIP20 ; Percentage ; 20 ; 300 ; 2025-12-31 23:59:59 ; specific_customer ; 101|102 ; VIP offer ",
			check: func(t *testing.T, c coupon.Coupon) {
				assert.Equal(t, coupon.DiscountPercentage, c.DiscountType)
				assert.True(t, decimal.NewFromInt(300).Equal(c.MinOrderValue))
				require.NotNil(t, c.ExpiresAt)
				assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, ist).Unix(), c.ExpiresAt.Unix())
				assert.True(t, c.AllowedCustomerIDs.Contains(101))
				assert.True(t, c.AllowedCustomerIDs.Contains(102))
				assert.Equal(t, "VIP offer", c.DisplayText)
			},
		},
		{
			name: "delivery free hidden",
			line: "SHIPFREE;delivery_free;0;;;hidden",
			check: func(t *testing.T, c coupon.Coupon) {
				assert.Equal(t, coupon.DiscountDeliveryFree, c.DiscountType)
				assert.Equal(t, coupon.VisibilityHidden, c.Visibility)
			},
		},
		{name: "too few fields", line: "X;fixed", wantErr: "at least 3 fields"},
		{name: "bad value", line: "X;fixed;ten", wantErr: "discount_value"},
		{name: "negative value", line: "X;fixed;-1", wantErr: "negative"},
		{name: "percentage over 100", line: "X;percentage;150", wantErr: "over 100"},
		{name: "unknown type", line: "X;free_lowest;0", wantErr: "unknown discount_type"},
		{name: "bad expiry", line: "X;fixed;1;0;tomorrow", wantErr: "unrecognized expiry"},
		{name: "unknown visibility", line: "X;fixed;1;0;;secret", wantErr: "unknown visibility"},
		{name: "customer coupon without ids", line: "X;fixed;1;0;;specific_customer", wantErr: "without customer ids"},
		{name: "code with spaces", line: "MY CODE;fixed;1", wantErr: "invalid code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseRecord(tt.line, ist)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}

	for _, line := range []string{"", "   ", "# header"} {
		_, err := parseRecord(line, ist)
		assert.ErrorIs(t, err, errSkip)
	}
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeExport(t, dir, "a.gz",
			"# partner A",
			"SAVE10;percentage;10",
			"SHARED;fixed;10",
			"BROKEN;fixed",
		),
		writeExport(t, dir, "b.gz",
			"shared;fixed;25;100",
			"ONLYB;fixed;5",
		),
	}

	store := &mockStore{}
	st, err := ingest(context.Background(), files, time.UTC, store)
	require.NoError(t, err)

	assert.Equal(t, 3, st.written)
	assert.Equal(t, 1, st.rejected)
	assert.Equal(t, 1, st.conflicts)
	require.Len(t, store.coupons, 3)

	shared := store.coupons["SHARED"]
	assert.Equal(t, "shared", shared.Code)
	assert.True(t, decimal.NewFromInt(25).Equal(shared.DiscountValue), "later file wins")
	assert.Contains(t, store.coupons, "ONLYB")
}

func TestIngest_StoreFailure(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeExport(t, dir, "a.gz", "SAVE10;percentage;10")}

	_, err := ingest(context.Background(), files, time.UTC, &mockStore{err: errors.New("db down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestIngest_MissingFile(t *testing.T) {
	_, err := ingest(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")}, time.UTC, &mockStore{})
	require.Error(t, err)
}
