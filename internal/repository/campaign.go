package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendura/vendura/internal/domain/campaign"
)

const (
	campaignColumns = `id, name, slug, description, type, value, percentage, active,
		starts_at, ends_at, category_ids, product_ids, shop_ids,
		min_purchase_amount, min_purchase_items, priority, public, COALESCE(created_by, '')`

	getCampaignByIDSQL = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	listActiveCampaignsSQL = `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE active AND starts_at <= $1 AND ends_at >= $1
		ORDER BY priority DESC, starts_at DESC`

	insertCampaignSQL = `INSERT INTO campaigns (id, name, slug, description, type, value,
			percentage, active, starts_at, ends_at, category_ids, product_ids, shop_ids,
			min_purchase_amount, min_purchase_items, priority, public, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NULLIF($18, ''))`

	setCampaignActiveSQL = `UPDATE campaigns SET active = $2, updated_at = now() WHERE id = $1`
)

var _ campaign.Repository = (*CampaignRepository)(nil)

// CampaignRepository implements campaign.Repository backed by PostgreSQL.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a CampaignRepository that uses the given pool.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// GetByID returns a single campaign. Returns campaign.ErrNotFound when the
// campaign does not exist.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*campaign.Campaign, error) {
	rows, err := r.pool.Query(ctx, getCampaignByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting campaign %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCampaign)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, campaign.ErrNotFound
		}
		return nil, fmt.Errorf("getting campaign %q: %w", id, err)
	}
	return &c, nil
}

// ListActive returns active campaigns whose window contains now, ordered by
// descending priority.
func (r *CampaignRepository) ListActive(ctx context.Context, now time.Time) ([]campaign.Campaign, error) {
	rows, err := r.pool.Query(ctx, listActiveCampaignsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing active campaigns: %w", err)
	}
	return pgx.CollectRows(rows, scanCampaign)
}

// Create persists a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, c *campaign.Campaign) error {
	_, err := r.pool.Exec(ctx, insertCampaignSQL,
		c.ID, c.Name, c.Slug, c.Description, string(c.Type), c.Value,
		c.Percentage, c.Active, c.StartsAt, c.EndsAt,
		c.CategoryIDs, c.ProductIDs, c.ShopIDs,
		c.MinPurchaseAmount, c.MinPurchaseItems, c.Priority, c.Public, c.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("creating campaign %q: %w", c.Slug, err)
	}
	return nil
}

// SetActive soft-activates or deactivates a campaign.
func (r *CampaignRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.pool.Exec(ctx, setCampaignActiveSQL, id, active)
	if err != nil {
		return fmt.Errorf("setting campaign %q active=%t: %w", id, active, err)
	}
	return nil
}

func scanCampaign(row pgx.CollectableRow) (campaign.Campaign, error) {
	var (
		c   campaign.Campaign
		typ string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description, &typ, &c.Value, &c.Percentage,
		&c.Active, &c.StartsAt, &c.EndsAt,
		&c.CategoryIDs, &c.ProductIDs, &c.ShopIDs,
		&c.MinPurchaseAmount, &c.MinPurchaseItems, &c.Priority, &c.Public, &c.CreatedBy,
	)
	c.Type = campaign.Type(typ)
	return c, err
}
