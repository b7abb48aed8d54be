package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendura/vendura/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT c.id, c.code, c.description, c.type, c.value, c.max_discount,
			c.active, c.starts_at, c.ends_at, COALESCE(c.shop_id, ''), COALESCE(c.created_by, ''),
			r.coupon_id IS NOT NULL,
			COALESCE(r.usage_limit, 0), COALESCE(r.usage_count, 0), COALESCE(r.per_user_limit, 0),
			COALESCE(r.min_spend, 0), COALESCE(r.max_spend, 0),
			COALESCE(r.product_ids, '{}'), COALESCE(r.category_ids, '{}'),
			COALESCE(r.shop_ids, '{}'), COALESCE(r.user_groups, '{}'),
			COALESCE(r.new_customers_only, FALSE)
		FROM coupons c
		LEFT JOIN coupon_restrictions r ON r.coupon_id = c.id
		WHERE UPPER(c.code) = UPPER($1)`

	getCouponByIDSQL = `SELECT c.id, c.code, c.description, c.type, c.value, c.max_discount,
			c.active, c.starts_at, c.ends_at, COALESCE(c.shop_id, ''), COALESCE(c.created_by, ''),
			r.coupon_id IS NOT NULL,
			COALESCE(r.usage_limit, 0), COALESCE(r.usage_count, 0), COALESCE(r.per_user_limit, 0),
			COALESCE(r.min_spend, 0), COALESCE(r.max_spend, 0),
			COALESCE(r.product_ids, '{}'), COALESCE(r.category_ids, '{}'),
			COALESCE(r.shop_ids, '{}'), COALESCE(r.user_groups, '{}'),
			COALESCE(r.new_customers_only, FALSE)
		FROM coupons c
		LEFT JOIN coupon_restrictions r ON r.coupon_id = c.id
		WHERE c.id = $1`

	insertCouponSQL = `INSERT INTO coupons (id, code, description, type, value, max_discount,
			active, starts_at, ends_at, shop_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''))`

	insertRestrictionSQL = `INSERT INTO coupon_restrictions (coupon_id, usage_limit, usage_count,
			per_user_limit, min_spend, max_spend, product_ids, category_ids, shop_ids,
			user_groups, new_customers_only)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	upsertCouponByCodeSQL = `INSERT INTO coupons (id, code, description, type, value, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (code)
		DO UPDATE SET description = EXCLUDED.description, type = EXCLUDED.type,
			value = EXCLUDED.value, active = TRUE, updated_at = now()`

	setCouponActiveSQL = `UPDATE coupons SET active = $2, updated_at = now() WHERE id = $1`

	// Conditional so a concurrent redemption cannot push usage past the limit.
	incrementCouponUsageSQL = `UPDATE coupon_restrictions
		SET usage_count = usage_count + 1
		WHERE coupon_id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), joining the
// optional restriction row. Returns coupon.ErrNotFound when no coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// GetByID looks up a coupon by ID, joining the optional restriction row.
// Returns coupon.ErrNotFound when no coupon exists.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return &c, nil
}

// Create persists a coupon and, when present, its restriction row.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.Description, string(c.Type), c.Value, c.MaxDiscount,
		c.Active, c.StartsAt, c.EndsAt, c.ShopID, c.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}

	if rst := c.Restriction; rst != nil {
		_, err = tx.Exec(ctx, insertRestrictionSQL,
			c.ID, rst.UsageLimit, rst.UsageCount, rst.PerUserLimit,
			rst.MinSpend, rst.MaxSpend, rst.ProductIDs, rst.CategoryIDs,
			rst.ShopIDs, rst.UserGroups, rst.NewCustomersOnly,
		)
		if err != nil {
			return fmt.Errorf("creating restriction for coupon %q: %w", c.Code, err)
		}
	}

	return tx.Commit(ctx)
}

// UpsertByCode inserts a coupon keyed by its code, reactivating and
// updating the rule when the code already exists. Used by bulk ingest.
func (r *CouponRepository) UpsertByCode(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponByCodeSQL,
		c.ID, c.Code, c.Description, string(c.Type), c.Value,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// SetActive soft-activates or deactivates a coupon.
func (r *CouponRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.pool.Exec(ctx, setCouponActiveSQL, id, active)
	if err != nil {
		return fmt.Errorf("setting coupon %q active=%t: %w", id, active, err)
	}
	return nil
}

// IncrementUsage atomically bumps the restriction usage counter, refusing to
// pass the usage limit. A coupon without a restriction row has nothing to
// count and succeeds trivially.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", id, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c              coupon.Coupon
		typ            string
		endsAt         *time.Time
		hasRestriction bool
		rst            coupon.Restriction
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &typ, &c.Value, &c.MaxDiscount,
		&c.Active, &c.StartsAt, &endsAt, &c.ShopID, &c.CreatedBy,
		&hasRestriction,
		&rst.UsageLimit, &rst.UsageCount, &rst.PerUserLimit,
		&rst.MinSpend, &rst.MaxSpend,
		&rst.ProductIDs, &rst.CategoryIDs, &rst.ShopIDs, &rst.UserGroups,
		&rst.NewCustomersOnly,
	)
	c.Type = coupon.Type(typ)
	c.EndsAt = endsAt
	if hasRestriction {
		c.Restriction = &rst
	}
	return c, err
}
