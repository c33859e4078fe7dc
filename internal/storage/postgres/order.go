package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, coupon_code, subtotal, coupon_discount,
		subtotal_after_discount, delivery_charge, final_total, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, position, product_id, product_name,
		quantity, price_at_order)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id::text, customer_id, COALESCE(coupon_code, ''), subtotal, coupon_discount,
		subtotal_after_discount, delivery_charge, final_total, created_at
		FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT product_id, product_name, quantity, price_at_order
		FROM order_items WHERE order_id = $1 ORDER BY position`
)

// ErrOrderNotFound is returned by OrderRepository.Get for unknown ids.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create stores the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.CustomerID, o.CouponCode,
			o.Subtotal, o.CouponDiscount, o.SubtotalAfterDiscount, o.DeliveryCharge, o.FinalTotal,
			o.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "create order %q", o.ID)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(createOrderItemSQL, o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.PriceAtOrder)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "create items of order %q", o.ID)
		}
		return nil
	})
}

// Get loads a stored order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.CustomerID, &o.CouponCode,
		&o.Subtotal, &o.CouponDiscount, &o.SubtotalAfterDiscount, &o.DeliveryCharge, &o.FinalTotal,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of order %q", id)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.PriceAtOrder)
		it.Total = it.PriceAtOrder.Mul(decimal.NewFromInt(int64(it.Quantity)))
		return it, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan items of order %q", id)
	}
	return &o, nil
}
