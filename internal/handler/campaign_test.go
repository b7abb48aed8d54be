package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendura/vendura/internal/domain/campaign"
	"github.com/vendura/vendura/internal/domain/catalog"
	"github.com/vendura/vendura/internal/domain/shop"
	"github.com/vendura/vendura/internal/domain/user"
)

type mockShopRepo struct {
	byOwner map[string]*shop.Shop
}

func (m *mockShopRepo) GetByID(_ context.Context, id string) (*shop.Shop, error) {
	for _, s := range m.byOwner {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shop.ErrNotFound
}

func (m *mockShopRepo) GetByOwner(_ context.Context, ownerID string) (*shop.Shop, error) {
	if s, ok := m.byOwner[ownerID]; ok {
		return s, nil
	}
	return nil, shop.ErrNotFound
}

func (m *mockShopRepo) Create(_ context.Context, _ *shop.Shop) error { return nil }

type mockCatalogRepo struct {
	products map[string]*catalog.Product
}

func (m *mockCatalogRepo) List(_ context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockCatalogRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalogRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) Create(_ context.Context, _ *catalog.Product) error   { return nil }
func (m *mockCatalogRepo) UpdateStock(_ context.Context, _ string, _ int) error { return nil }

type mockCampaignRepo struct {
	campaigns  map[string]*campaign.Campaign
	setActives []string
}

func (m *mockCampaignRepo) GetByID(_ context.Context, id string) (*campaign.Campaign, error) {
	if c, ok := m.campaigns[id]; ok {
		return c, nil
	}
	return nil, campaign.ErrNotFound
}

func (m *mockCampaignRepo) Create(_ context.Context, c *campaign.Campaign) error {
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignRepo) ListActive(_ context.Context, _ time.Time) ([]campaign.Campaign, error) {
	return nil, nil
}

func (m *mockCampaignRepo) SetActive(_ context.Context, id string, _ bool) error {
	m.setActives = append(m.setActives, id)
	return nil
}

// campaignFixture wires a Handler over mocks: vendor v1 owns shop s1 selling
// p1, vendor v2 owns shop s2 selling p2.
type campaignFixture struct {
	h         *Handler
	campaigns *mockCampaignRepo
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()

	shops := &mockShopRepo{byOwner: map[string]*shop.Shop{
		"v1": {ID: "s1", OwnerID: "v1", Name: "Dessert Corner", Active: true},
		"v2": {ID: "s2", OwnerID: "v2", Name: "Sweet Spot", Active: true},
	}}
	products := &mockCatalogRepo{products: map[string]*catalog.Product{
		"p1": {ID: "p1", ShopID: "s1", Name: "Waffle"},
		"p2": {ID: "p2", ShopID: "s2", Name: "Tiramisu"},
	}}
	campaigns := &mockCampaignRepo{campaigns: map[string]*campaign.Campaign{}}

	h := NewHandler(Config{}, nil, products, nil, campaigns, shops, nil)
	return &campaignFixture{h: h, campaigns: campaigns}
}

func authedRequest(method, target, body string, id Identity) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), identityKey{}, id)
	return req.WithContext(ctx)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateCampaign_VendorProductScope(t *testing.T) {
	vendor := Identity{UserID: "v1", Role: user.RoleVendor}

	t.Run("own products accepted", func(t *testing.T) {
		f := newCampaignFixture(t)
		body := `{"name":"Waffle Week","type":"product","value":"10","percentage":true,
			"productIds":["p1"],"startsAt":"2026-09-01T00:00:00Z","endsAt":"2026-09-08T00:00:00Z"}`

		w := httptest.NewRecorder()
		f.h.CreateCampaign(w, authedRequest(http.MethodPost, "/api/campaigns", body, vendor))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Len(t, f.campaigns.campaigns, 1)
		for _, c := range f.campaigns.campaigns {
			assert.Equal(t, []string{"s1"}, c.ShopIDs)
		}
	})

	t.Run("another vendor's product rejected", func(t *testing.T) {
		f := newCampaignFixture(t)
		body := `{"name":"Everything Off","type":"product","value":"50","percentage":true,
			"productIds":["p1","p2"],"startsAt":"2026-09-01T00:00:00Z","endsAt":"2026-09-08T00:00:00Z"}`

		w := httptest.NewRecorder()
		f.h.CreateCampaign(w, authedRequest(http.MethodPost, "/api/campaigns", body, vendor))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, f.campaigns.campaigns)
	})

	t.Run("product campaign without productIds rejected", func(t *testing.T) {
		f := newCampaignFixture(t)
		body := `{"name":"Empty","type":"product","value":"10","percentage":true,
			"startsAt":"2026-09-01T00:00:00Z","endsAt":"2026-09-08T00:00:00Z"}`

		w := httptest.NewRecorder()
		f.h.CreateCampaign(w, authedRequest(http.MethodPost, "/api/campaigns", body, vendor))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSetCampaignActive_Ownership(t *testing.T) {
	newFixtureWithCampaign := func(t *testing.T) *campaignFixture {
		t.Helper()
		f := newCampaignFixture(t)
		f.campaigns.campaigns["camp-1"] = &campaign.Campaign{
			ID: "camp-1", Name: "Waffle Week", Type: campaign.TypeProduct,
			ShopIDs: []string{"s1"}, CreatedBy: "v1", Active: true,
		}
		return f
	}

	tests := []struct {
		name     string
		caller   Identity
		wantCode int
	}{
		{name: "creator may toggle", caller: Identity{UserID: "v1", Role: user.RoleVendor}, wantCode: http.StatusNoContent},
		{name: "another vendor is forbidden", caller: Identity{UserID: "v2", Role: user.RoleVendor}, wantCode: http.StatusForbidden},
		{name: "admin may toggle", caller: Identity{UserID: "a1", Role: user.RoleAdmin}, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWithCampaign(t)

			req := authedRequest(http.MethodPatch, "/api/campaigns/camp-1/active", `{"active":false}`, tt.caller)
			req = withURLParam(req, "id", "camp-1")
			w := httptest.NewRecorder()
			f.h.SetCampaignActive(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusForbidden {
				assert.Empty(t, f.campaigns.setActives)
			} else {
				assert.Equal(t, []string{"camp-1"}, f.campaigns.setActives)
			}
		})
	}
}
