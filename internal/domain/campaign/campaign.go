package campaign

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates campaign targeting strategies.
type Type string

const (
	// TypeSiteWide applies to every product on the platform.
	TypeSiteWide Type = "site_wide"
	// TypeCategory applies to products in the campaign's category set.
	TypeCategory Type = "category"
	// TypeShop applies to products sold by shops in the campaign's shop set.
	TypeShop Type = "shop"
	// TypeProduct applies to products in the campaign's product set.
	TypeProduct Type = "product"
	// TypeFlashSale, TypeSeasonal, TypeBOGO and TypeBundle behave as
	// site-wide unless the campaign carries explicit target sets.
	TypeFlashSale Type = "flash_sale"
	TypeSeasonal  Type = "seasonal"
	TypeBOGO      Type = "bogo"
	TypeBundle    Type = "bundle"
)

// ErrNotFound is returned when a requested campaign does not exist.
var ErrNotFound = errors.New("campaign not found")

// Campaign is a vendor- or admin-defined promotional rule applied
// automatically to qualifying orders and products.
type Campaign struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Type        Type
	Value       decimal.Decimal
	// Percentage selects between percentage and fixed-amount discounts.
	Percentage bool
	Active     bool
	StartsAt   time.Time
	EndsAt     time.Time

	// Target sets; meaning depends on Type.
	CategoryIDs []string
	ProductIDs  []string
	ShopIDs     []string

	MinPurchaseAmount decimal.Decimal
	MinPurchaseItems  int

	// Priority orders campaigns when several could apply; higher wins
	// for product price display.
	Priority  int
	Public    bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is an order line viewed through the lens of campaign targeting.
type Item struct {
	ProductID  string
	CategoryID string
	ShopID     string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// ProductView carries the product fields needed to price a single product
// under a campaign.
type ProductView struct {
	ProductID  string
	CategoryID string
	ShopID     string
	Price      decimal.Decimal
}

// Repository provides persistence for campaigns.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Campaign, error)
	Create(ctx context.Context, c *Campaign) error
	// ListActive returns active campaigns whose window contains now,
	// ordered by descending priority.
	ListActive(ctx context.Context, now time.Time) ([]Campaign, error)
	SetActive(ctx context.Context, id string, active bool) error
}
