package coupon

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFixed subtracts a fixed amount, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercentage subtracts a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountDeliveryFree carries no monetary discount and waives the
	// delivery charge while applied.
	DiscountDeliveryFree DiscountType = "delivery_free"
)

// Visibility controls who may see and redeem a coupon.
type Visibility string

const (
	VisibilityPublic           Visibility = "public"
	VisibilityHidden           Visibility = "hidden"
	VisibilitySpecificCustomer Visibility = "specific_customer"
)

// Ineligibility reasons returned by Check, in evaluation order.
var (
	// ErrCouponNotFound is returned when no coupon matches a code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponExpired is returned when the current time is past the expiry.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrBelowMinimum is returned when the subtotal is under the coupon minimum.
	ErrBelowMinimum = errors.New("order below coupon minimum")
	// ErrLoginRequired is returned for a customer-specific coupon without a customer.
	ErrLoginRequired = errors.New("coupon requires a logged-in customer")
	// ErrNotForCustomer is returned when the customer is not in the allowed set.
	ErrNotForCustomer = errors.New("coupon not available for customer")
)

// Coupon is a normalized catalog entry. Codes compare case-insensitively.
type Coupon struct {
	ID                 int64
	Code               string
	DiscountType       DiscountType
	DiscountValue      decimal.Decimal
	MinOrderValue      decimal.Decimal
	ExpiresAt          *time.Time
	Visibility         Visibility
	AllowedCustomerIDs CustomerSet
	DisplayText        string
	LogoURL            string
	CompanyName        string
}

// Matches reports whether code refers to this coupon.
func (c Coupon) Matches(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), c.Code)
}

// Expired reports whether the coupon is past its expiry at now. A coupon is
// still valid at the exact expiry instant.
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// CustomerSet is a set of customer identifiers.
type CustomerSet map[int64]struct{}

// NewCustomerSet builds a set from ids.
func NewCustomerSet(ids ...int64) CustomerSet {
	s := make(CustomerSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s CustomerSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s CustomerSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Source fetches the full coupon catalog.
type Source interface {
	FetchAll(ctx context.Context) ([]Coupon, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Coupon, error)

// FetchAll calls f.
func (f SourceFunc) FetchAll(ctx context.Context) ([]Coupon, error) {
	return f(ctx)
}

// Static returns a Source serving a fixed list.
func Static(coupons ...Coupon) Source {
	return SourceFunc(func(context.Context) ([]Coupon, error) {
		return slices.Clone(coupons), nil
	})
}
