package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states. An order starts life as a
// cart; checkout freezes item mutation and moves it to pending.
type Status string

const (
	StatusCart       Status = "cart"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
	StatusRefunded   Status = "refunded"
)

// transitions lists the allowed status moves for vendor/admin updates.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCanceled},
	StatusProcessing: {StatusShipped, StatusCanceled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusCompleted, StatusRefunded},
	StatusCompleted:  {StatusRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Sentinel errors for order mutation.
var (
	ErrNotFound      = errors.New("order not found")
	ErrNotCart       = errors.New("cannot add items to a non-cart order")
	ErrEmptyCart     = errors.New("cannot checkout empty cart")
	ErrNotCancelable = errors.New("only pending orders can be canceled")
	ErrNotOwner      = errors.New("order belongs to another user")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidTransitionError indicates a disallowed status change.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// LineItem is one product entry in an order. UnitPrice is the product's
// base price captured at the time the item was added.
type LineItem struct {
	ID         string
	ProductID  string
	CategoryID string
	ShopID     string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// Order is the aggregate for both carts and placed orders.
// Invariant: TotalAmount = Subtotal + TaxAmount + ShippingCost -
// DiscountAmount, clamped at zero.
type Order struct {
	ID     string
	UserID string
	Status Status
	Items  []LineItem

	// CouponCode is empty when no coupon is applied.
	CouponCode string
	// CampaignIDs are the promotional campaigns attached to this order.
	CampaignIDs []string

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemCount returns the number of line items (not summed quantities);
// campaign minimum-item thresholds count lines.
func (o *Order) ItemCount() int {
	return len(o.Items)
}

// Totals is the computed money snapshot persisted after recalculation.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Repository defines persistence operations for orders. UpdateTotals and
// UpdateStatus write named fields only; the surrounding transaction
// isolation is responsible for concurrent mutations of the same order.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListByShop(ctx context.Context, shopID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)

	UpsertItem(ctx context.Context, orderID string, item LineItem) error
	UpdateTotals(ctx context.Context, id string, t Totals) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	SetCoupon(ctx context.Context, id, couponCode string) error
	AttachCampaign(ctx context.Context, orderID, campaignID string) error

	// CountCouponRedemptions counts this user's prior non-cart orders that
	// redeemed the given coupon.
	CountCouponRedemptions(ctx context.Context, userID, couponID string) (int, error)
	// HasCompletedOrder reports whether the user has any prior order in
	// completed or delivered status.
	HasCompletedOrder(ctx context.Context, userID string) (bool, error)
}
