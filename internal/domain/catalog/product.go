package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates product publication states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrCategoryNotFound is returned when a requested category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
)

// Category groups products; Parent is empty for top-level categories.
type Category struct {
	ID       string
	Name     string
	ParentID string
	Active   bool
}

// Product is a catalog item sold by a shop.
type Product struct {
	ID          string
	ShopID      string
	CategoryID  string
	Name        string
	Slug        string
	Description string
	SKU         string
	BasePrice   decimal.Decimal
	// Discount is a product-level percentage discount set by the vendor.
	Discount  decimal.Decimal
	Stock     int
	Status    Status
	Tags      []string
	Image     Image
	Variants  []Variant
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Variant is a purchasable variation of a product (size, colour).
type Variant struct {
	ID         string
	Name       string
	SKU        string
	PriceDelta decimal.Decimal
	Stock      int
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// DiscountedPrice returns the base price after the product-level percentage
// discount, rounded to 2 decimal places.
func (p *Product) DiscountedPrice() decimal.Decimal {
	if !p.Discount.IsPositive() {
		return p.BasePrice
	}
	cut := p.BasePrice.Mul(p.Discount).Div(decimal.NewFromInt(100))
	return p.BasePrice.Sub(cut).Round(2)
}

// InStock reports whether the product has stock remaining.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	UpdateStock(ctx context.Context, id string, delta int) error
}
