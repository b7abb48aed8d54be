package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendura/vendura/internal/domain/catalog"
)

const (
	productColumns = `id, shop_id, COALESCE(category_id, ''), name, slug, description, sku,
		base_price, discount, stock, status, tags,
		image_thumbnail, image_mobile, image_tablet, image_desktop, COALESCE(created_by, '')`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE status = 'published' ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (id, shop_id, category_id, name, slug, description,
			sku, base_price, discount, stock, status, tags,
			image_thumbnail, image_mobile, image_tablet, image_desktop, created_by)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, NULLIF($17, ''))`

	// Guard keeps stock from going negative on concurrent checkouts.
	updateStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all published products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.ShopID, p.CategoryID, p.Name, p.Slug, p.Description,
		p.SKU, p.BasePrice, p.Discount, p.Stock, string(p.Status), p.Tags,
		p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Slug, err)
	}
	return nil
}

// UpdateStock adjusts the stock level by delta (negative to reserve).
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, delta int) error {
	tag, err := r.pool.Exec(ctx, updateStockSQL, id, delta)
	if err != nil {
		return fmt.Errorf("updating stock for product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insufficient stock for product %q", id)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p      catalog.Product
		status string
	)
	err := row.Scan(
		&p.ID, &p.ShopID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.SKU,
		&p.BasePrice, &p.Discount, &p.Stock, &status, &p.Tags,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
		&p.CreatedBy,
	)
	p.Status = catalog.Status(status)
	return p, err
}
