package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the immutable summary of a submitted cart.
type Order struct {
	ID         string
	CustomerID *int64
	CouponCode string
	Items      []Item

	Subtotal              decimal.Decimal
	CouponDiscount        decimal.Decimal
	SubtotalAfterDiscount decimal.Decimal
	DeliveryCharge        decimal.Decimal
	FinalTotal            decimal.Decimal

	CreatedAt time.Time
}

// Item is a line of an order with the price charged at submission time.
type Item struct {
	ProductID    int64
	ProductName  string
	Quantity     int
	PriceAtOrder decimal.Decimal
	Total        decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}

// Publisher hands a stored order to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, order *Order) error
}
