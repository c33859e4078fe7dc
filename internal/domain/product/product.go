package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID               int64
	Name             string
	ShortDescription string
	MRPPrice         decimal.Decimal
	SpecialPrice     decimal.Decimal
	ThumbnailImage   string
	Categories       []string
	Tag              string
}

// Snapshot returns the copy of the product stored on a cart line.
func (p Product) Snapshot() cart.Product {
	return cart.Product{
		ID:           p.ID,
		Name:         p.Name,
		SpecialPrice: p.SpecialPrice.StringFixed(2),
		MRPPrice:     p.MRPPrice.StringFixed(2),
		ImageURL:     p.ThumbnailImage,
	}
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
}
