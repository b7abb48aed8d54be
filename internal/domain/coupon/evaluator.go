package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator decides whether a coupon applies to an order and computes its
// discount. It is pure apart from the clock, which tests may override.
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

// IsValid reports whether c can be applied to the order described by ord.
// A nil ord checks only the active flag and the validity window, matching
// listing endpoints that have no order in hand. Failing a check never
// produces an error: an invalid coupon simply contributes no discount.
func (e *Evaluator) IsValid(c *Coupon, ord *OrderContext) bool {
	now := e.now()

	if !c.Active {
		return false
	}
	if now.Before(c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}

	if ord == nil {
		return true
	}

	r := c.Restriction
	if r == nil {
		return true
	}

	if r.UsageLimit > 0 && r.UsageCount >= r.UsageLimit {
		return false
	}
	if r.PerUserLimit > 0 && ord.PriorRedemptions >= r.PerUserLimit {
		return false
	}
	if r.MinSpend.IsPositive() && ord.Subtotal.LessThan(r.MinSpend) {
		return false
	}
	if r.MaxSpend.IsPositive() && ord.Subtotal.GreaterThan(r.MaxSpend) {
		return false
	}
	if r.NewCustomersOnly && ord.HasCompletedOrder {
		return false
	}

	// Product and category targets are checked independently: every
	// populated target set must intersect the order.
	if len(r.ProductIDs) > 0 && !intersects(r.ProductIDs, ord.productIDs()) {
		return false
	}
	if len(r.CategoryIDs) > 0 && !intersects(r.CategoryIDs, ord.categoryIDs()) {
		return false
	}
	if len(r.ShopIDs) > 0 && !intersects(r.ShopIDs, ord.shopIDs()) {
		return false
	}
	if len(r.UserGroups) > 0 && !intersects(r.UserGroups, ord.UserGroups) {
		return false
	}

	return true
}

// Discount computes the discount amount for the given subtotal without
// re-checking eligibility. Percentage discounts respect MaxDiscount when it
// is set; fixed discounts never exceed the subtotal. Free-shipping coupons
// return zero here: the shipping waiver is applied by the totals aggregator.
func (e *Evaluator) Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.Type {
	case TypePercentage:
		d := subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() && d.GreaterThan(c.MaxDiscount) {
			d = c.MaxDiscount
		}
		return clampZero(d).Round(2)
	case TypeFixed:
		return clampZero(decimal.Min(c.Value, subtotal)).Round(2)
	default:
		return decimal.Zero
	}
}

// WaivesShipping reports whether c removes the order's shipping cost.
func (e *Evaluator) WaivesShipping(c *Coupon) bool {
	return c.Type == TypeFreeShipping
}

func (o *OrderContext) productIDs() []string {
	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.ProductID
	}
	return ids
}

func (o *OrderContext) categoryIDs() []string {
	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.CategoryID
	}
	return ids
}

func (o *OrderContext) shopIDs() []string {
	ids := make([]string, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.ShopID
	}
	return ids
}

// intersects reports whether any element of have is present in want.
func intersects(want, have []string) bool {
	set := make(map[string]struct{}, len(want))
	for _, w := range want {
		set[w] = struct{}{}
	}
	for _, h := range have {
		if _, ok := set[h]; ok {
			return true
		}
	}
	return false
}

// clampZero floors negative amounts at zero.
func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
