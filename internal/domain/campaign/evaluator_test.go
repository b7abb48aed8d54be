package campaign

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvaluator_ActiveNow(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator().WithClock(func() time.Time { return fixedNow })

	tests := []struct {
		name     string
		campaign Campaign
		want     bool
	}{
		{
			name: "inside window",
			campaign: Campaign{
				Active:   true,
				StartsAt: fixedNow.Add(-time.Hour),
				EndsAt:   fixedNow.Add(time.Hour),
			},
			want: true,
		},
		{
			name: "inactive",
			campaign: Campaign{
				Active:   false,
				StartsAt: fixedNow.Add(-time.Hour),
				EndsAt:   fixedNow.Add(time.Hour),
			},
			want: false,
		},
		{
			name: "not started",
			campaign: Campaign{
				Active:   true,
				StartsAt: fixedNow.Add(time.Hour),
				EndsAt:   fixedNow.Add(2 * time.Hour),
			},
			want: false,
		},
		{
			name: "ended",
			campaign: Campaign{
				Active:   true,
				StartsAt: fixedNow.Add(-2 * time.Hour),
				EndsAt:   fixedNow.Add(-time.Hour),
			},
			want: false,
		},
		{
			name: "window boundaries are inclusive",
			campaign: Campaign{
				Active:   true,
				StartsAt: fixedNow,
				EndsAt:   fixedNow,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.ActiveNow(&tt.campaign))
		})
	}
}

func TestEvaluator_Discount(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator().WithClock(func() time.Time { return fixedNow })

	running := Campaign{
		Active:   true,
		StartsAt: fixedNow.Add(-time.Hour),
		EndsAt:   fixedNow.Add(time.Hour),
	}

	// 80 in cat1 + 20 in cat2.
	items := []Item{
		{ProductID: "p1", CategoryID: "cat1", ShopID: "s1", UnitPrice: decimal.NewFromInt(40), Quantity: 2},
		{ProductID: "p2", CategoryID: "cat2", ShopID: "s2", UnitPrice: decimal.NewFromInt(20), Quantity: 1},
	}
	subtotal := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		mutate   func(c *Campaign)
		subtotal decimal.Decimal
		items    []Item
		want     string
	}{
		{
			name: "site-wide percentage over full subtotal",
			mutate: func(c *Campaign) {
				c.Type = TypeSiteWide
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
			},
			subtotal: decimal.NewFromInt(200),
			items: []Item{
				{ProductID: "p1", UnitPrice: decimal.NewFromInt(200), Quantity: 1},
			},
			want: "20",
		},
		{
			name: "category campaign discounts matching lines only",
			mutate: func(c *Campaign) {
				c.Type = TypeCategory
				c.CategoryIDs = []string{"cat1"}
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
			},
			subtotal: subtotal,
			items:    items,
			want:     "8",
		},
		{
			name: "shop campaign discounts matching lines only",
			mutate: func(c *Campaign) {
				c.Type = TypeShop
				c.ShopIDs = []string{"s2"}
				c.Percentage = true
				c.Value = decimal.NewFromInt(50)
			},
			subtotal: subtotal,
			items:    items,
			want:     "10",
		},
		{
			name: "fixed amount capped at applicable subtotal",
			mutate: func(c *Campaign) {
				c.Type = TypeProduct
				c.ProductIDs = []string{"p2"}
				c.Value = decimal.NewFromInt(50)
			},
			subtotal: subtotal,
			items:    items,
			want:     "20",
		},
		{
			name: "below min purchase amount",
			mutate: func(c *Campaign) {
				c.Type = TypeSiteWide
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
				c.MinPurchaseAmount = decimal.NewFromInt(150)
			},
			subtotal: subtotal,
			items:    items,
			want:     "0",
		},
		{
			name: "below min purchase items",
			mutate: func(c *Campaign) {
				c.Type = TypeSiteWide
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
				c.MinPurchaseItems = 3
			},
			subtotal: subtotal,
			items:    items,
			want:     "0",
		},
		{
			name: "flash sale without target sets acts site-wide",
			mutate: func(c *Campaign) {
				c.Type = TypeFlashSale
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
			},
			subtotal: subtotal,
			items:    items,
			want:     "10",
		},
		{
			name: "flash sale with target set matches any populated set",
			mutate: func(c *Campaign) {
				c.Type = TypeFlashSale
				c.ProductIDs = []string{"p2"}
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
			},
			subtotal: subtotal,
			items:    items,
			want:     "2",
		},
		{
			name: "expired campaign contributes nothing",
			mutate: func(c *Campaign) {
				c.Type = TypeSiteWide
				c.Percentage = true
				c.Value = decimal.NewFromInt(10)
				c.EndsAt = fixedNow.Add(-time.Minute)
			},
			subtotal: subtotal,
			items:    items,
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := running
			tt.mutate(&c)
			got := eval.Discount(&c, tt.subtotal, tt.items)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestEvaluator_ApplyToProduct(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator().WithClock(func() time.Time { return fixedNow })

	view := ProductView{
		ProductID:  "p1",
		CategoryID: "cat1",
		ShopID:     "s1",
		Price:      decimal.NewFromInt(40),
	}

	t.Run("percentage discount", func(t *testing.T) {
		c := Campaign{
			Type:       TypeSiteWide,
			Percentage: true,
			Value:      decimal.NewFromInt(25),
			Active:     true,
			StartsAt:   fixedNow.Add(-time.Hour),
			EndsAt:     fixedNow.Add(time.Hour),
		}
		got := eval.ApplyToProduct(&c, view)
		assert.True(t, got.Equal(decimal.NewFromInt(30)), "got %s", got)
	})

	t.Run("non-matching campaign leaves price unchanged", func(t *testing.T) {
		c := Campaign{
			Type:        TypeCategory,
			CategoryIDs: []string{"other"},
			Percentage:  true,
			Value:       decimal.NewFromInt(25),
			Active:      true,
			StartsAt:    fixedNow.Add(-time.Hour),
			EndsAt:      fixedNow.Add(time.Hour),
		}
		got := eval.ApplyToProduct(&c, view)
		assert.True(t, got.Equal(view.Price), "got %s", got)
	})

	t.Run("fixed discount never drops below zero", func(t *testing.T) {
		c := Campaign{
			Type:     TypeSiteWide,
			Value:    decimal.NewFromInt(100),
			Active:   true,
			StartsAt: fixedNow.Add(-time.Hour),
			EndsAt:   fixedNow.Add(time.Hour),
		}
		got := eval.ApplyToProduct(&c, view)
		assert.True(t, got.Equal(decimal.Zero), "got %s", got)
	})

	t.Run("inactive campaign leaves price unchanged", func(t *testing.T) {
		c := Campaign{
			Type:       TypeSiteWide,
			Percentage: true,
			Value:      decimal.NewFromInt(25),
			Active:     false,
			StartsAt:   fixedNow.Add(-time.Hour),
			EndsAt:     fixedNow.Add(time.Hour),
		}
		got := eval.ApplyToProduct(&c, view)
		assert.True(t, got.Equal(view.Price), "got %s", got)
	})
}
