package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendura/vendura/internal/domain/campaign"
	"github.com/vendura/vendura/internal/domain/catalog"
	"github.com/vendura/vendura/internal/domain/coupon"
	"github.com/vendura/vendura/internal/domain/user"
)

// In-memory repositories backing the service under test.

type mockOrderRepo struct {
	orders      map[string]*Order
	redemptions int
	completed   bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	cp.CampaignIDs = append([]string(nil), o.CampaignIDs...)
	return &cp, nil
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByShop(_ context.Context, _ string) ([]Order, error) { return nil, nil }
func (m *mockOrderRepo) ListAll(_ context.Context) ([]Order, error)             { return nil, nil }

func (m *mockOrderRepo) UpsertItem(_ context.Context, orderID string, item LineItem) error {
	o := m.orders[orderID]
	for i := range o.Items {
		if o.Items[i].ProductID == item.ProductID {
			o.Items[i] = item
			return nil
		}
	}
	o.Items = append(o.Items, item)
	return nil
}

func (m *mockOrderRepo) UpdateTotals(_ context.Context, id string, t Totals) error {
	o := m.orders[id]
	o.Subtotal, o.TaxAmount, o.ShippingCost = t.Subtotal, t.Tax, t.Shipping
	o.DiscountAmount, o.TotalAmount = t.Discount, t.Total
	return nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	m.orders[id].Status = status
	return nil
}

func (m *mockOrderRepo) SetCoupon(_ context.Context, id, code string) error {
	m.orders[id].CouponCode = code
	return nil
}

func (m *mockOrderRepo) AttachCampaign(_ context.Context, orderID, campaignID string) error {
	o := m.orders[orderID]
	o.CampaignIDs = append(o.CampaignIDs, campaignID)
	return nil
}

func (m *mockOrderRepo) CountCouponRedemptions(_ context.Context, _, _ string) (int, error) {
	return m.redemptions, nil
}

func (m *mockOrderRepo) HasCompletedOrder(_ context.Context, _ string) (bool, error) {
	return m.completed, nil
}

type mockProductRepo struct {
	products map[string]*catalog.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]catalog.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, _ []string) ([]catalog.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) Create(_ context.Context, _ *catalog.Product) error { return nil }

func (m *mockProductRepo) UpdateStock(_ context.Context, id string, delta int) error {
	m.products[id].Stock += delta
	return nil
}

type mockCouponRepo struct {
	coupons        map[string]*coupon.Coupon
	usageIncrement int
}

func (m *mockCouponRepo) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	for _, c := range m.coupons {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) Create(_ context.Context, _ *coupon.Coupon) error       { return nil }
func (m *mockCouponRepo) SetActive(_ context.Context, _ string, _ bool) error    { return nil }
func (m *mockCouponRepo) IncrementUsage(_ context.Context, _ string) error {
	m.usageIncrement++
	return nil
}

type mockCampaignRepo struct {
	campaigns map[string]*campaign.Campaign
}

func (m *mockCampaignRepo) GetByID(_ context.Context, id string) (*campaign.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return c, nil
}

func (m *mockCampaignRepo) Create(_ context.Context, _ *campaign.Campaign) error { return nil }

func (m *mockCampaignRepo) ListActive(_ context.Context, _ time.Time) ([]campaign.Campaign, error) {
	return nil, nil
}

func (m *mockCampaignRepo) SetActive(_ context.Context, _ string, _ bool) error { return nil }

type mockUserRepo struct {
	users map[string]*user.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) Create(_ context.Context, _ *user.User) error { return nil }

// fixture wires a service over fresh mocks with one buyer and two products.
type fixture struct {
	svc       *Service
	orders    *mockOrderRepo
	products  *mockProductRepo
	coupons   *mockCouponRepo
	campaigns *mockCampaignRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	orders := newMockOrderRepo()
	products := &mockProductRepo{products: map[string]*catalog.Product{
		"p1": {ID: "p1", ShopID: "s1", CategoryID: "cat1", Name: "Waffle",
			BasePrice: decimal.NewFromInt(40), Stock: 10, Status: catalog.StatusPublished},
		"p2": {ID: "p2", ShopID: "s2", CategoryID: "cat2", Name: "Tiramisu",
			BasePrice: decimal.NewFromInt(20), Stock: 5, Status: catalog.StatusPublished},
	}}
	coupons := &mockCouponRepo{coupons: map[string]*coupon.Coupon{}}
	campaigns := &mockCampaignRepo{campaigns: map[string]*campaign.Campaign{}}
	users := &mockUserRepo{users: map[string]*user.User{
		"u1": {ID: "u1", Email: "buyer@example.com", Role: user.RoleCustomer},
	}}

	svc := NewService(orders, products, coupons, campaigns, users, PricingConfig{
		TaxRate:     decimal.RequireFromString("0.08"),
		ShippingFee: decimal.NewFromInt(5),
	})

	return &fixture{svc: svc, orders: orders, products: products, coupons: coupons, campaigns: campaigns}
}

func activeCoupon(code string, typ coupon.Type, value int64) *coupon.Coupon {
	return &coupon.Coupon{
		ID:       "c-" + code,
		Code:     code,
		Type:     typ,
		Value:    decimal.NewFromInt(value),
		Active:   true,
		StartsAt: time.Now().Add(-time.Hour),
	}
}

func TestService_CreateCart(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.CreateCart(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, StatusCart, o.Status)
	assert.Equal(t, "u1", o.UserID)
	assert.True(t, o.ShippingCost.Equal(decimal.NewFromInt(5)))
	assert.Empty(t, o.Items)
}

func TestService_AddProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("adds item and recalculates totals", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)

		o, err := f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)

		require.Len(t, o.Items, 1)
		assert.Equal(t, 2, o.Items[0].Quantity)
		// 80 + 8% tax + 5 shipping.
		assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(80)), "subtotal %s", o.Subtotal)
		assert.True(t, o.TaxAmount.Equal(decimal.RequireFromString("6.4")), "tax %s", o.TaxAmount)
		assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("91.4")), "total %s", o.TotalAmount)
	})

	t.Run("adding the same product merges quantity", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)

		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)
		o, err := f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)

		require.Len(t, o.Items, 1)
		assert.Equal(t, 3, o.Items[0].Quantity)
	})

	t.Run("zero quantity is rejected", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)

		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 0)
		var iqErr *InvalidQuantityError
		assert.ErrorAs(t, err, &iqErr)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)

		_, err = f.svc.AddProduct(ctx, cart.ID, "nope", 1)
		var pnfErr *ProductNotFoundError
		assert.ErrorAs(t, err, &pnfErr)
	})

	t.Run("cannot add to a placed order", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)
		_, err = f.svc.Checkout(ctx, cart.ID)
		require.NoError(t, err)

		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		assert.ErrorIs(t, err, ErrNotCart)
	})
}

func TestService_ApplyCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("valid coupon discounts the order", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["SAVE20"] = activeCoupon("SAVE20", coupon.TypePercentage, 20)

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)

		o, err := f.svc.ApplyCoupon(ctx, cart.ID, "SAVE20")
		require.NoError(t, err)

		assert.Equal(t, "SAVE20", o.CouponCode)
		// 80 - 16 + 6.40 tax + 5 shipping.
		assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(16)), "discount %s", o.DiscountAmount)
		assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("75.4")), "total %s", o.TotalAmount)
	})

	t.Run("ineligible coupon is rejected", func(t *testing.T) {
		f := newFixture(t)
		c := activeCoupon("VIP", coupon.TypePercentage, 20)
		c.Restriction = &coupon.Restriction{UserGroups: []string{"vips"}}
		f.coupons.coupons["VIP"] = c

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)

		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "VIP")
		assert.ErrorIs(t, err, coupon.ErrNotApplicable)
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)

		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "NOPE")
		assert.ErrorIs(t, err, coupon.ErrNotFound)
	})

	t.Run("free shipping waives the fee", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["SHIPFREE"] = activeCoupon("SHIPFREE", coupon.TypeFreeShipping, 0)

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)

		o, err := f.svc.ApplyCoupon(ctx, cart.ID, "SHIPFREE")
		require.NoError(t, err)

		assert.True(t, o.ShippingCost.IsZero(), "shipping %s", o.ShippingCost)
		assert.True(t, o.DiscountAmount.IsZero(), "discount %s", o.DiscountAmount)
		// 80 + 6.40 tax.
		assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("86.4")), "total %s", o.TotalAmount)
	})

	t.Run("shipping fee returns when the coupon stops validating", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["SHIPFREE"] = activeCoupon("SHIPFREE", coupon.TypeFreeShipping, 0)

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)

		o, err := f.svc.ApplyCoupon(ctx, cart.ID, "SHIPFREE")
		require.NoError(t, err)
		require.True(t, o.ShippingCost.IsZero(), "shipping %s", o.ShippingCost)

		f.coupons.coupons["SHIPFREE"].Active = false

		o, err = f.svc.AddProduct(ctx, cart.ID, "p2", 1)
		require.NoError(t, err)

		assert.True(t, o.ShippingCost.Equal(decimal.NewFromInt(5)), "shipping %s", o.ShippingCost)
		// 100 + 8 tax + 5 shipping.
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(113)), "total %s", o.TotalAmount)
	})
}

func TestService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, cart.ID)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("places the order, reserves stock and redeems the coupon", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["SAVE20"] = activeCoupon("SAVE20", coupon.TypePercentage, 20)

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)
		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "SAVE20")
		require.NoError(t, err)

		o, err := f.svc.Checkout(ctx, cart.ID)
		require.NoError(t, err)

		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, 8, f.products.products["p1"].Stock)
		assert.Equal(t, 1, f.coupons.usageIncrement)
	})

	t.Run("checkout twice fails", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)
		_, err = f.svc.Checkout(ctx, cart.ID)
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, cart.ID)
		assert.ErrorIs(t, err, ErrNotCart)
	})

	t.Run("a coupon that stopped validating is not redeemed", func(t *testing.T) {
		f := newFixture(t)
		c := activeCoupon("LIMITED", coupon.TypePercentage, 20)
		c.Restriction = &coupon.Restriction{UsageLimit: 5, UsageCount: 4}
		f.coupons.coupons["LIMITED"] = c

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)
		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "LIMITED")
		require.NoError(t, err)

		// The last redemption elsewhere exhausts the limit.
		c.Restriction.UsageCount = 5

		o, err := f.svc.Checkout(ctx, cart.ID)
		require.NoError(t, err)

		assert.True(t, o.DiscountAmount.IsZero(), "discount %s", o.DiscountAmount)
		assert.Zero(t, f.coupons.usageIncrement)
	})
}

func TestService_CalculateTotals(t *testing.T) {
	ctx := context.Background()

	t.Run("campaign discounts stack with the coupon", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["SAVE20"] = activeCoupon("SAVE20", coupon.TypePercentage, 20)
		f.campaigns.campaigns["camp1"] = &campaign.Campaign{
			ID:         "camp1",
			Type:       campaign.TypeSiteWide,
			Percentage: true,
			Value:      decimal.NewFromInt(10),
			Active:     true,
			StartsAt:   time.Now().Add(-time.Hour),
			EndsAt:     time.Now().Add(time.Hour),
		}

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)
		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "SAVE20")
		require.NoError(t, err)

		o, err := f.svc.AttachCampaign(ctx, cart.ID, "camp1")
		require.NoError(t, err)

		// 16 coupon + 8 campaign on an 80 subtotal.
		assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(24)), "discount %s", o.DiscountAmount)
	})

	t.Run("total never goes negative", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["MEGA"] = activeCoupon("MEGA", coupon.TypePercentage, 100)
		f.campaigns.campaigns["camp1"] = &campaign.Campaign{
			ID:         "camp1",
			Type:       campaign.TypeSiteWide,
			Percentage: true,
			Value:      decimal.NewFromInt(100),
			Active:     true,
			StartsAt:   time.Now().Add(-time.Hour),
			EndsAt:     time.Now().Add(time.Hour),
		}

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)
		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "MEGA")
		require.NoError(t, err)

		o, err := f.svc.AttachCampaign(ctx, cart.ID, "camp1")
		require.NoError(t, err)

		assert.True(t, o.TotalAmount.IsZero(), "total %s", o.TotalAmount)
	})

	t.Run("recalculating an unchanged order is stable", func(t *testing.T) {
		f := newFixture(t)
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		o, err := f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)

		first := o.TotalAmount
		require.NoError(t, f.svc.CalculateTotals(ctx, o))
		assert.True(t, o.TotalAmount.Equal(first), "total changed: %s -> %s", first, o.TotalAmount)
	})

	t.Run("a deactivated coupon contributes nothing at totals time", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.coupons["SAVE20"] = activeCoupon("SAVE20", coupon.TypePercentage, 20)

		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 2)
		require.NoError(t, err)
		_, err = f.svc.ApplyCoupon(ctx, cart.ID, "SAVE20")
		require.NoError(t, err)

		delete(f.coupons.coupons, "SAVE20")

		o, err := f.svc.AddProduct(ctx, cart.ID, "p2", 1)
		require.NoError(t, err)

		assert.True(t, o.DiscountAmount.IsZero(), "discount %s", o.DiscountAmount)
	})
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	placed := func(t *testing.T, f *fixture) *Order {
		t.Helper()
		cart, err := f.svc.CreateCart(ctx, "u1")
		require.NoError(t, err)
		_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
		require.NoError(t, err)
		o, err := f.svc.Checkout(ctx, cart.ID)
		require.NoError(t, err)
		return o
	}

	t.Run("owner cancels a pending order", func(t *testing.T) {
		f := newFixture(t)
		o := placed(t, f)

		require.NoError(t, f.svc.Cancel(ctx, o.ID, "u1"))
		assert.Equal(t, StatusCanceled, f.orders.orders[o.ID].Status)
	})

	t.Run("only the owner may cancel", func(t *testing.T) {
		f := newFixture(t)
		o := placed(t, f)

		assert.ErrorIs(t, f.svc.Cancel(ctx, o.ID, "someone-else"), ErrNotOwner)
	})

	t.Run("only pending orders cancel", func(t *testing.T) {
		f := newFixture(t)
		o := placed(t, f)
		require.NoError(t, f.svc.UpdateStatus(ctx, o.ID, StatusProcessing))

		assert.ErrorIs(t, f.svc.Cancel(ctx, o.ID, "u1"), ErrNotCancelable)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cart, err := f.svc.CreateCart(ctx, "u1")
	require.NoError(t, err)
	_, err = f.svc.AddProduct(ctx, cart.ID, "p1", 1)
	require.NoError(t, err)
	o, err := f.svc.Checkout(ctx, cart.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateStatus(ctx, o.ID, StatusProcessing))
	require.NoError(t, f.svc.UpdateStatus(ctx, o.ID, StatusShipped))

	var itErr *InvalidTransitionError
	err = f.svc.UpdateStatus(ctx, o.ID, StatusPending)
	assert.ErrorAs(t, err, &itErr)
}
