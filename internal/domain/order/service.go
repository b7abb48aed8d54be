package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendura/vendura/internal/domain/campaign"
	"github.com/vendura/vendura/internal/domain/catalog"
	"github.com/vendura/vendura/internal/domain/coupon"
	"github.com/vendura/vendura/internal/domain/user"
)

// PricingConfig holds the order-level money inputs that do not come from
// line items. TaxRate is a fraction (0.08 = 8%); ShippingFee is a flat
// per-order cost, waived by free-shipping coupons.
type PricingConfig struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// Service owns cart mutation, checkout, and the order totals pipeline.
type Service struct {
	orders    Repository
	products  catalog.Repository
	coupons   coupon.Repository
	campaigns campaign.Repository
	users     user.Repository

	couponEval   *coupon.Evaluator
	campaignEval *campaign.Evaluator
	pricing      PricingConfig
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	orders Repository,
	products catalog.Repository,
	coupons coupon.Repository,
	campaigns campaign.Repository,
	users user.Repository,
	pricing PricingConfig,
) *Service {
	return &Service{
		orders:       orders,
		products:     products,
		coupons:      coupons,
		campaigns:    campaigns,
		users:        users,
		couponEval:   coupon.NewEvaluator(),
		campaignEval: campaign.NewEvaluator(),
		pricing:      pricing,
	}
}

// CreateCart opens a new empty cart for the user.
func (s *Service) CreateCart(ctx context.Context, userID string) (*Order, error) {
	o := &Order{
		ID:           uuid.New().String(),
		UserID:       userID,
		Status:       StatusCart,
		ShippingCost: s.pricing.ShippingFee,
		CreatedAt:    time.Now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return o, nil
}

// AddProduct adds quantity units of a product to a cart and recalculates
// totals. Adding to an order that has left the cart state fails with
// ErrNotCart. Adding a product already in the cart increases its quantity.
func (s *Service) AddProduct(ctx context.Context, orderID, productID string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Status != StatusCart {
		return nil, ErrNotCart
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: productID}
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	item := s.mergeItem(o, p, quantity)
	if err := s.orders.UpsertItem(ctx, o.ID, item); err != nil {
		return nil, errors.Wrap(err, "upsert item")
	}

	if err := s.CalculateTotals(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// mergeItem folds quantity into an existing line for the product or appends
// a new line, and returns the line to persist.
func (s *Service) mergeItem(o *Order, p *catalog.Product, quantity int) LineItem {
	for i := range o.Items {
		if o.Items[i].ProductID == p.ID {
			o.Items[i].Quantity += quantity
			return o.Items[i]
		}
	}
	item := LineItem{
		ID:         uuid.New().String(),
		ProductID:  p.ID,
		CategoryID: p.CategoryID,
		ShopID:     p.ShopID,
		Name:       p.Name,
		UnitPrice:  p.BasePrice,
		Quantity:   quantity,
	}
	o.Items = append(o.Items, item)
	return item
}

// ApplyCoupon attaches a coupon code to a cart. Unlike totals calculation,
// an explicit apply is answered: a coupon that fails eligibility returns
// coupon.ErrNotApplicable so the caller can surface it.
func (s *Service) ApplyCoupon(ctx context.Context, orderID, code string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Status != StatusCart {
		return nil, ErrNotCart
	}

	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	subtotal := itemSubtotal(o.Items)
	octx, err := s.orderContext(ctx, o, c, subtotal)
	if err != nil {
		return nil, err
	}
	if !s.couponEval.IsValid(c, octx) {
		return nil, coupon.ErrNotApplicable
	}

	if err := s.orders.SetCoupon(ctx, o.ID, c.Code); err != nil {
		return nil, errors.Wrap(err, "set coupon")
	}
	o.CouponCode = c.Code

	if err := s.CalculateTotals(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// AttachCampaign attaches a campaign to a cart; its discount is picked up
// on the next totals calculation.
func (s *Service) AttachCampaign(ctx context.Context, orderID, campaignID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Status != StatusCart {
		return nil, ErrNotCart
	}
	if _, err := s.campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	if err := s.orders.AttachCampaign(ctx, o.ID, campaignID); err != nil {
		return nil, errors.Wrap(err, "attach campaign")
	}
	o.CampaignIDs = append(o.CampaignIDs, campaignID)

	if err := s.CalculateTotals(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Checkout places a cart: totals are recalculated from a fresh snapshot,
// the coupon (if still valid) is redeemed with an atomic usage increment,
// stock is reserved, and the order moves to pending. Item mutation is
// frozen from this point on.
func (s *Service) Checkout(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Status != StatusCart {
		return nil, ErrNotCart
	}
	if len(o.Items) == 0 {
		return nil, ErrEmptyCart
	}

	redeemed, err := s.recalculate(ctx, o)
	if err != nil {
		return nil, err
	}

	if redeemed != nil {
		if err := s.coupons.IncrementUsage(ctx, redeemed.ID); err != nil {
			return nil, errors.Wrap(err, "redeem coupon")
		}
	}

	for _, item := range o.Items {
		if err := s.products.UpdateStock(ctx, item.ProductID, -item.Quantity); err != nil {
			return nil, errors.Wrapf(err, "reserve stock for product %s", item.ProductID)
		}
	}

	if err := s.orders.UpdateStatus(ctx, o.ID, StatusPending); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = StatusPending
	return o, nil
}

// CalculateTotals recomputes the order's money fields from its line items,
// coupon and campaigns, and persists them. Calling it again on an unchanged
// order yields the same result.
func (s *Service) CalculateTotals(ctx context.Context, o *Order) error {
	_, err := s.recalculate(ctx, o)
	return err
}

// recalculate runs the totals pipeline and returns the coupon that
// contributed, if any, so checkout can redeem it.
func (s *Service) recalculate(ctx context.Context, o *Order) (*coupon.Coupon, error) {
	subtotal := itemSubtotal(o.Items)
	discount := decimal.Zero
	// Shipping starts from the configured fee on every pass, never from the
	// stored order row: a waiver only holds for as long as its coupon still
	// validates.
	shipping := s.pricing.ShippingFee

	// Coupon contribution. A coupon that no longer validates contributes
	// nothing; it is not an error at calculation time.
	var redeemed *coupon.Coupon
	if o.CouponCode != "" {
		c, err := s.coupons.FindByCode(ctx, o.CouponCode)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			// Coupon deactivated since it was applied; drop silently.
		case err != nil:
			return nil, errors.Wrap(err, "find coupon")
		default:
			octx, err := s.orderContext(ctx, o, c, subtotal)
			if err != nil {
				return nil, err
			}
			if s.couponEval.IsValid(c, octx) {
				discount = discount.Add(s.couponEval.Discount(c, subtotal))
				if s.couponEval.WaivesShipping(c) {
					shipping = decimal.Zero
				}
				redeemed = c
			}
		}
	}

	// Campaign contributions stack additively; each is evaluated
	// independently against the full item set.
	items := campaignItems(o.Items)
	for _, id := range o.CampaignIDs {
		c, err := s.campaigns.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, campaign.ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "get campaign %s", id)
		}
		discount = discount.Add(s.campaignEval.Discount(c, subtotal, items))
	}

	tax := subtotal.Mul(s.pricing.TaxRate).Round(2)

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	t := Totals{
		Subtotal: subtotal.Round(2),
		Tax:      tax,
		Shipping: shipping.Round(2),
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}
	if err := s.orders.UpdateTotals(ctx, o.ID, t); err != nil {
		return nil, errors.Wrap(err, "update totals")
	}

	o.Subtotal = t.Subtotal
	o.TaxAmount = t.Tax
	o.ShippingCost = t.Shipping
	o.DiscountAmount = t.Discount
	o.TotalAmount = t.Total
	return redeemed, nil
}

// Cancel cancels one of the user's own pending orders.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	if o.UserID != userID {
		return ErrNotOwner
	}
	if o.Status != StatusPending {
		return ErrNotCancelable
	}
	return s.orders.UpdateStatus(ctx, o.ID, StatusCanceled)
}

// UpdateStatus moves an order along the fulfilment lifecycle, rejecting
// transitions outside the allowed graph.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	return s.orders.UpdateStatus(ctx, o.ID, to)
}

// ListByUser returns the user's orders, carts included.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// orderContext assembles the eligibility snapshot for a coupon check:
// the buyer's groups, their redemption count for this coupon, and whether
// they have completed an order before.
func (s *Service) orderContext(ctx context.Context, o *Order, c *coupon.Coupon, subtotal decimal.Decimal) (*coupon.OrderContext, error) {
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	prior, err := s.orders.CountCouponRedemptions(ctx, o.UserID, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "count redemptions")
	}

	completed, err := s.orders.HasCompletedOrder(ctx, o.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "check order history")
	}

	items := make([]coupon.Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = coupon.Item{
			ProductID:  it.ProductID,
			CategoryID: it.CategoryID,
			ShopID:     it.ShopID,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		}
	}

	return &coupon.OrderContext{
		Subtotal:          subtotal,
		Items:             items,
		UserGroups:        u.Groups,
		PriorRedemptions:  prior,
		HasCompletedOrder: completed,
	}, nil
}

// itemSubtotal sums unit price x quantity across all line items.
func itemSubtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func campaignItems(items []LineItem) []campaign.Item {
	out := make([]campaign.Item, len(items))
	for i, it := range items {
		out[i] = campaign.Item{
			ProductID:  it.ProductID,
			CategoryID: it.CategoryID,
			ShopID:     it.ShopID,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		}
	}
	return out
}
