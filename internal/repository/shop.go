package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendura/vendura/internal/domain/shop"
)

const (
	shopColumns = `id, owner_id, name, description, active, created_at, updated_at`

	getShopByIDSQL = `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`

	getShopByOwnerSQL = `SELECT ` + shopColumns + ` FROM shops WHERE owner_id = $1`

	insertShopSQL = `INSERT INTO shops (id, owner_id, name, description, active)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ shop.Repository = (*ShopRepository)(nil)

// ShopRepository implements shop.Repository backed by PostgreSQL.
type ShopRepository struct {
	pool *pgxpool.Pool
}

// NewShopRepository returns a ShopRepository that uses the given pool.
func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

// GetByID returns the shop, or shop.ErrNotFound.
func (r *ShopRepository) GetByID(ctx context.Context, id string) (*shop.Shop, error) {
	return r.get(ctx, getShopByIDSQL, id)
}

// GetByOwner returns the shop owned by the given vendor, or shop.ErrNotFound.
func (r *ShopRepository) GetByOwner(ctx context.Context, ownerID string) (*shop.Shop, error) {
	return r.get(ctx, getShopByOwnerSQL, ownerID)
}

func (r *ShopRepository) get(ctx context.Context, sql, arg string) (*shop.Shop, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting shop %q: %w", arg, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanShop)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shop.ErrNotFound
		}
		return nil, fmt.Errorf("getting shop %q: %w", arg, err)
	}
	return &s, nil
}

// Create persists a new shop.
func (r *ShopRepository) Create(ctx context.Context, s *shop.Shop) error {
	_, err := r.pool.Exec(ctx, insertShopSQL,
		s.ID, s.OwnerID, s.Name, s.Description, s.Active,
	)
	if err != nil {
		return fmt.Errorf("creating shop %q: %w", s.ID, err)
	}
	return nil
}

func scanShop(row pgx.CollectableRow) (shop.Shop, error) {
	var s shop.Shop
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Active,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
