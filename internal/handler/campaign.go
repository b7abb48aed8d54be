package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendura/vendura/internal/domain/campaign"
	"github.com/vendura/vendura/internal/domain/user"
)

type campaignResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	Value       float64  `json:"value"`
	Percentage  bool     `json:"percentage"`
	StartsAt    string   `json:"startsAt"`
	EndsAt      string   `json:"endsAt"`
	CategoryIDs []string `json:"categoryIds,omitempty"`
	ProductIDs  []string `json:"productIds,omitempty"`
	ShopIDs     []string `json:"shopIds,omitempty"`
	Priority    int      `json:"priority"`
}

func toCampaignResponse(c *campaign.Campaign) campaignResponse {
	return campaignResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Type:        string(c.Type),
		Value:       c.Value.InexactFloat64(),
		Percentage:  c.Percentage,
		StartsAt:    c.StartsAt.Format(time.RFC3339),
		EndsAt:      c.EndsAt.Format(time.RFC3339),
		CategoryIDs: c.CategoryIDs,
		ProductIDs:  c.ProductIDs,
		ShopIDs:     c.ShopIDs,
		Priority:    c.Priority,
	}
}

// ListCampaigns returns currently running public campaigns.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	active, err := h.campaigns.ListActive(r.Context(), time.Now())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]campaignResponse, 0, len(active))
	for i := range active {
		if !active[i].Public {
			continue
		}
		out = append(out, toCampaignResponse(&active[i]))
	}
	respond(w, http.StatusOK, out)
}

var campaignTypes = map[campaign.Type]bool{
	campaign.TypeSiteWide:  true,
	campaign.TypeCategory:  true,
	campaign.TypeShop:      true,
	campaign.TypeProduct:   true,
	campaign.TypeFlashSale: true,
	campaign.TypeSeasonal:  true,
	campaign.TypeBOGO:      true,
	campaign.TypeBundle:    true,
}

type createCampaignRequest struct {
	Name              string   `json:"name"`
	Slug              string   `json:"slug"`
	Description       string   `json:"description"`
	Type              string   `json:"type"`
	Value             string   `json:"value"`
	Percentage        bool     `json:"percentage"`
	StartsAt          string   `json:"startsAt"`
	EndsAt            string   `json:"endsAt"`
	CategoryIDs       []string `json:"categoryIds"`
	ProductIDs        []string `json:"productIds"`
	ShopIDs           []string `json:"shopIds"`
	MinPurchaseAmount string   `json:"minPurchaseAmount"`
	MinPurchaseItems  int      `json:"minPurchaseItems"`
	Priority          int      `json:"priority"`
	Public            *bool    `json:"public"`
}

// CreateCampaign creates a campaign. Vendors are restricted to campaigns
// targeting their own shop; admins may create any type.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req createCampaignRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	cType := campaign.Type(req.Type)
	if !campaignTypes[cType] {
		respondError(w, http.StatusBadRequest, "unknown campaign type")
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil || value.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid value")
		return
	}
	minPurchase := decimal.Zero
	if req.MinPurchaseAmount != "" {
		if minPurchase, err = decimal.NewFromString(req.MinPurchaseAmount); err != nil {
			respondError(w, http.StatusBadRequest, "invalid min purchase amount")
			return
		}
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid startsAt")
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil || !endsAt.After(startsAt) {
		respondError(w, http.StatusBadRequest, "invalid endsAt")
		return
	}

	shopIDs := req.ShopIDs
	if id.Role == user.RoleVendor {
		s, err := h.shops.GetByOwner(r.Context(), id.UserID)
		if err != nil {
			respondError(w, http.StatusPreconditionFailed, "vendor has no shop")
			return
		}
		if cType != campaign.TypeShop && cType != campaign.TypeProduct {
			respondError(w, http.StatusForbidden, "vendors may only create shop or product campaigns")
			return
		}
		if cType == campaign.TypeProduct {
			if len(req.ProductIDs) == 0 {
				respondError(w, http.StatusBadRequest, "product campaigns require productIds")
				return
			}
			if ok, err := h.productsBelongToShop(r.Context(), req.ProductIDs, s.ID); err != nil {
				respondDomainError(w, r, err)
				return
			} else if !ok {
				respondError(w, http.StatusForbidden, "products must belong to the vendor's shop")
				return
			}
		}
		shopIDs = []string{s.ID}
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}
	public := true
	if req.Public != nil {
		public = *req.Public
	}

	c := &campaign.Campaign{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Slug:              slug,
		Description:       req.Description,
		Type:              cType,
		Value:             value,
		Percentage:        req.Percentage,
		Active:            true,
		StartsAt:          startsAt,
		EndsAt:            endsAt,
		CategoryIDs:       req.CategoryIDs,
		ProductIDs:        req.ProductIDs,
		ShopIDs:           shopIDs,
		MinPurchaseAmount: minPurchase,
		MinPurchaseItems:  req.MinPurchaseItems,
		Priority:          req.Priority,
		Public:            public,
		CreatedBy:         id.UserID,
	}
	if err := h.campaigns.Create(r.Context(), c); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, toCampaignResponse(c))
}

// productsBelongToShop reports whether every requested product ID resolves to
// a product in the given shop.
func (h *Handler) productsBelongToShop(ctx context.Context, productIDs []string, shopID string) (bool, error) {
	products, err := h.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return false, err
	}

	own := make(map[string]bool, len(products))
	for i := range products {
		if products[i].ShopID == shopID {
			own[products[i].ID] = true
		}
	}
	for _, pid := range productIDs {
		if !own[pid] {
			return false, nil
		}
	}
	return true, nil
}

// SetCampaignActive toggles a campaign's active flag. Vendors may only touch
// campaigns they created; admins may touch any.
func (h *Handler) SetCampaignActive(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req setActiveRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.campaigns.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if id.Role != user.RoleAdmin && c.CreatedBy != id.UserID {
		respondError(w, http.StatusForbidden, "campaign belongs to another vendor")
		return
	}

	if err := h.campaigns.SetActive(r.Context(), c.ID, req.Active); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
