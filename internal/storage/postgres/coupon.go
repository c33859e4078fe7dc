package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

const (
	listActiveCouponsSQL = `SELECT id, coupon_code, discount_type, discount_value, min_order_value,
		expiry_date, visibility, allowed_customer_ids, display_text, logo_url, company_name
		FROM coupons WHERE active = TRUE ORDER BY id`

	upsertCouponSQL = `INSERT INTO coupons (coupon_code, discount_type, discount_value, min_order_value,
		expiry_date, visibility, allowed_customer_ids, display_text, logo_url, company_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ((UPPER(coupon_code))) DO UPDATE SET
			discount_type        = EXCLUDED.discount_type,
			discount_value       = EXCLUDED.discount_value,
			min_order_value      = EXCLUDED.min_order_value,
			expiry_date          = EXCLUDED.expiry_date,
			visibility           = EXCLUDED.visibility,
			allowed_customer_ids = EXCLUDED.allowed_customer_ids,
			display_text         = EXCLUDED.display_text,
			logo_url             = EXCLUDED.logo_url,
			company_name         = EXCLUDED.company_name,
			active               = TRUE`
)

var _ coupon.Source = (*CouponStore)(nil)

// CouponStore reads and writes the coupons table.
type CouponStore struct {
	pool *pgxpool.Pool
}

// NewCouponStore returns a CouponStore that uses the given pool.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// FetchAll returns the active coupons in insertion order.
func (s *CouponStore) FetchAll(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, listActiveCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Upsert inserts c or replaces the coupon with the same code, ignoring case.
func (s *CouponStore) Upsert(ctx context.Context, c coupon.Coupon) error {
	allowed := c.AllowedCustomerIDs.IDs()
	_, err := s.pool.Exec(ctx, upsertCouponSQL,
		c.Code, string(c.DiscountType), c.DiscountValue, c.MinOrderValue,
		c.ExpiresAt, string(c.Visibility), allowed,
		c.DisplayText, c.LogoURL, c.CompanyName,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		visibility   string
		expiry       *time.Time
		allowed      []int64
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.DiscountValue, &c.MinOrderValue,
		&expiry, &visibility, &allowed, &c.DisplayText, &c.LogoURL, &c.CompanyName,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.Visibility = coupon.Visibility(visibility)
	c.ExpiresAt = expiry
	c.AllowedCustomerIDs = coupon.NewCustomerSet(allowed...)
	return c, err
}
