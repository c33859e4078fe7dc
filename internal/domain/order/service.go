package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// ErrEmptyCart is returned when submitting a cart without items.
var ErrEmptyCart = pricing.ErrEmptyCart

// Cart is the part of a pricing engine the service needs. Checkout calls
// submit with the priced cart and empties the cart when submit succeeds,
// holding off other changes to the cart meanwhile.
type Cart interface {
	Checkout(ctx context.Context, submit func(pricing.Snapshot) error) error
}

var _ Cart = (*pricing.Engine)(nil)

// Service turns priced carts into stored orders.
type Service struct {
	orders    Repository
	publisher Publisher
	lg        *zap.Logger
	now       func() time.Time
}

// NewService creates an order Service. publisher may be nil.
func NewService(orders Repository, publisher Publisher, lg *zap.Logger) *Service {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{
		orders:    orders,
		publisher: publisher,
		lg:        lg,
		now:       time.Now,
	}
}

// Submit stores the priced cart as an order, clears the cart and publishes
// the order. When the order is stored but the emptied cart could not be
// persisted, both the order and the error are returned. A publish failure is
// logged and does not fail the submission.
func (s *Service) Submit(ctx context.Context, c Cart) (*Order, error) {
	var stored *Order
	err := c.Checkout(ctx, func(snap pricing.Snapshot) error {
		if len(snap.Items) == 0 {
			return ErrEmptyCart
		}

		o := FromSnapshot(snap)
		o.ID = uuid.New().String()
		o.CreatedAt = s.now().UTC()

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		stored = o
		return nil
	})
	if stored == nil {
		if err == nil {
			err = ErrEmptyCart
		}
		return nil, err
	}
	o := stored

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, o); err != nil {
			s.lg.Error("Publish order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	if err != nil {
		return o, errors.Wrap(err, "clear cart")
	}

	s.lg.Info("Order submitted",
		zap.String("order_id", o.ID),
		zap.String("coupon", o.CouponCode),
		zap.String("final_total", o.FinalTotal.StringFixed(2)),
	)
	return o, nil
}

// FromSnapshot copies the items and totals of snap into a new order without
// id or timestamp.
func FromSnapshot(snap pricing.Snapshot) *Order {
	items := make([]Item, 0, len(snap.Items))
	for _, li := range snap.Items {
		items = append(items, Item{
			ProductID:    li.Product.ID,
			ProductName:  li.Product.Name,
			Quantity:     li.Quantity,
			PriceAtOrder: li.Product.UnitPrice(),
			Total:        li.Total(),
		})
	}

	return &Order{
		CustomerID:            snap.CustomerID,
		CouponCode:            snap.CouponCode,
		Items:                 items,
		Subtotal:              snap.Totals.ItemsTotal,
		CouponDiscount:        snap.Totals.CouponDiscount,
		SubtotalAfterDiscount: snap.Totals.SubtotalAfterDiscount,
		DeliveryCharge:        snap.Totals.DeliveryCharge,
		FinalTotal:            snap.Totals.FinalTotal,
	}
}
