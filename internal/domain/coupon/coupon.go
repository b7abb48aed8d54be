package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the order subtotal.
	TypePercentage Type = "percentage"
	// TypeFixed discounts a fixed amount, capped at the subtotal.
	TypeFixed Type = "fixed"
	// TypeFreeShipping waives the shipping cost; it carries no subtotal discount.
	TypeFreeShipping Type = "shipping"
	// TypeBuyXGetY grants free items; handled outside the subtotal discount.
	TypeBuyXGetY Type = "bxgy"
	// TypeFirstOrder marks a first-purchase promotion.
	TypeFirstOrder Type = "first_order"
)

var (
	// ErrNotFound is returned when no coupon exists for a given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotApplicable is returned when a coupon exists but fails
	// eligibility checks for the order it is being applied to.
	ErrNotApplicable = errors.New("coupon not applicable")
)

// Coupon is a user-entered code granting a discount. A nil Restriction means
// only the active flag and validity window gate its use.
type Coupon struct {
	ID          string
	Code        string
	Description string
	Type        Type
	Value       decimal.Decimal
	// MaxDiscount caps percentage discounts. Zero means uncapped.
	MaxDiscount decimal.Decimal
	Active      bool
	StartsAt    time.Time
	// EndsAt is nil for coupons without an expiry.
	EndsAt *time.Time
	// ShopID is empty for platform-wide coupons created by admins.
	ShopID      string
	CreatedBy   string
	Restriction *Restriction
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Restriction is the eligibility ruleset attached to a coupon.
// Zero-valued limits mean "unlimited"; empty target slices mean "any".
type Restriction struct {
	UsageLimit   int
	UsageCount   int
	PerUserLimit int
	MinSpend     decimal.Decimal
	// MaxSpend rejects orders above this subtotal. Zero means no maximum.
	MaxSpend         decimal.Decimal
	ProductIDs       []string
	CategoryIDs      []string
	ShopIDs          []string
	UserGroups       []string
	NewCustomersOnly bool
}

// Item is an order line viewed through the lens of coupon eligibility.
type Item struct {
	ProductID  string
	CategoryID string
	ShopID     string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// OrderContext is a consistent snapshot of an order and its buyer, assembled
// by the caller for eligibility checks. PriorRedemptions counts earlier
// orders by the same user that redeemed this coupon; HasCompletedOrder is
// true when the user has any prior completed or delivered order.
type OrderContext struct {
	Subtotal          decimal.Decimal
	Items             []Item
	UserGroups        []string
	PriorRedemptions  int
	HasCompletedOrder bool
}

// Repository provides persistence for coupons and their restrictions.
// IncrementUsage must be atomic relative to concurrent redemptions so a
// usage limit cannot be oversubscribed.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Coupon, error)
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	SetActive(ctx context.Context, id string, active bool) error
	IncrementUsage(ctx context.Context, id string) error
}
