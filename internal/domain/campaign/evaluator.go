package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator decides campaign applicability and computes discounts. Pure
// apart from the clock, which tests may override.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an Evaluator using the system clock.
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// WithClock returns a copy of the Evaluator using the given clock.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// ActiveNow reports whether c is active and inside its validity window.
func (e *Evaluator) ActiveNow(c *Campaign) bool {
	now := e.now()
	return c.Active && !now.Before(c.StartsAt) && !now.After(c.EndsAt)
}

// Discount computes the campaign's discount for an order. It returns zero
// when the campaign is not active, the subtotal is below MinPurchaseAmount,
// or the order has fewer line items than MinPurchaseItems. The discount is
// computed over the applicable subtotal only: the sum of price x quantity
// across the line items the campaign's targeting matches.
func (e *Evaluator) Discount(c *Campaign, subtotal decimal.Decimal, items []Item) decimal.Decimal {
	if !e.ActiveNow(c) {
		return decimal.Zero
	}
	if subtotal.LessThan(c.MinPurchaseAmount) {
		return decimal.Zero
	}
	if c.MinPurchaseItems > 0 && len(items) < c.MinPurchaseItems {
		return decimal.Zero
	}

	applicable := decimal.Zero
	for _, it := range items {
		if !e.matches(c, it.ProductID, it.CategoryID, it.ShopID) {
			continue
		}
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		applicable = applicable.Add(line)
	}

	if c.Percentage {
		return applicable.Mul(c.Value).Div(hundred).Round(2)
	}
	return decimal.Min(c.Value, applicable).Round(2)
}

// ApplyToProduct returns the discounted price for a single product, or the
// unchanged price when the campaign is inactive or does not target it.
// The result never drops below zero.
func (e *Evaluator) ApplyToProduct(c *Campaign, p ProductView) decimal.Decimal {
	if !e.ActiveNow(c) {
		return p.Price
	}
	if !e.matches(c, p.ProductID, p.CategoryID, p.ShopID) {
		return p.Price
	}

	var discount decimal.Decimal
	if c.Percentage {
		discount = p.Price.Mul(c.Value).Div(hundred)
	} else {
		discount = decimal.Min(c.Value, p.Price)
	}

	price := p.Price.Sub(discount).Round(2)
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// matches applies the campaign's targeting rule to one product. Campaign
// types without a dedicated rule (flash sale, seasonal, bogo, bundle) act
// site-wide unless the campaign carries explicit target sets, in which case
// a product must match one of the populated sets.
func (e *Evaluator) matches(c *Campaign, productID, categoryID, shopID string) bool {
	switch c.Type {
	case TypeSiteWide:
		return true
	case TypeCategory:
		return contains(c.CategoryIDs, categoryID)
	case TypeShop:
		return contains(c.ShopIDs, shopID)
	case TypeProduct:
		return contains(c.ProductIDs, productID)
	default:
		if len(c.CategoryIDs) == 0 && len(c.ProductIDs) == 0 && len(c.ShopIDs) == 0 {
			return true
		}
		return contains(c.CategoryIDs, categoryID) ||
			contains(c.ProductIDs, productID) ||
			contains(c.ShopIDs, shopID)
	}
}

func contains(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
