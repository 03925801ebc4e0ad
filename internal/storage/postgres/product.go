package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evercart/checkout/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, sale_price, stock_quantity, status, COALESCE(sku, ''), category
		FROM products WHERE status = 'published' ORDER BY name`

	getProductSQL = `SELECT id, name, description, price, sale_price, stock_quantity, status, COALESCE(sku, ''), category
		FROM products WHERE id = $1 AND status = 'published'`

	getProductsSQL = `SELECT id, name, description, price, sale_price, stock_quantity, status, COALESCE(sku, ''), category
		FROM products WHERE id = ANY($1) AND status = 'published'`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, sale_price, stock_quantity, status, sku, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			sale_price = EXCLUDED.sale_price,
			stock_quantity = EXCLUDED.stock_quantity,
			status = EXCLUDED.status,
			sku = EXCLUDED.sku,
			category = EXCLUDED.category`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all published products.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// GetByID returns a single published product, or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs batch-fetches published products. Missing IDs are simply absent
// from the result; callers decide whether that is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return products, nil
}

// Upsert inserts or refreshes a catalog row. Used by the seed command.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.SalePrice,
		p.StockQuantity, string(p.Status), p.SKU, p.Category)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		salePrice *decimal.Decimal
		status    string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &salePrice,
		&p.StockQuantity, &status, &p.SKU, &p.Category)
	p.SalePrice = salePrice
	p.Status = product.Status(status)
	return p, err
}
