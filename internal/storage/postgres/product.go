package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/product"
)

const (
	productColumns = `id, name, short_description, mrp_price, special_price,
		thumbnail_image, categories, tag`

	listProductsSQL   = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	insertProductSQL = `INSERT INTO products (name, short_description, mrp_price, special_price,
		thumbnail_image, categories, tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns product.ErrNotFound when no row matches.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// Insert stores p and sets its generated id.
func (r *ProductRepository) Insert(ctx context.Context, p *product.Product) error {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	err := r.pool.QueryRow(ctx, insertProductSQL,
		p.Name, p.ShortDescription, p.MRPPrice, p.SpecialPrice,
		p.ThumbnailImage, categories, p.Tag,
	).Scan(&p.ID)
	if err != nil {
		return errors.Wrapf(err, "insert product %q", p.Name)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.ShortDescription, &p.MRPPrice, &p.SpecialPrice,
		&p.ThumbnailImage, &p.Categories, &p.Tag,
	)
	return p, err
}
