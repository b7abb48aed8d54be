package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendura/vendura/internal/domain/coupon"
	"github.com/vendura/vendura/internal/domain/shop"
	"github.com/vendura/vendura/internal/domain/user"
)

type createCouponRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	MaxDiscount string `json:"maxDiscount"`
	StartsAt    string `json:"startsAt"`
	EndsAt      string `json:"endsAt"`

	Restriction *restrictionRequest `json:"restriction"`
}

type restrictionRequest struct {
	UsageLimit       int      `json:"usageLimit"`
	PerUserLimit     int      `json:"perUserLimit"`
	MinSpend         string   `json:"minSpend"`
	MaxSpend         string   `json:"maxSpend"`
	ProductIDs       []string `json:"productIds"`
	CategoryIDs      []string `json:"categoryIds"`
	ShopIDs          []string `json:"shopIds"`
	UserGroups       []string `json:"userGroups"`
	NewCustomersOnly bool     `json:"newCustomersOnly"`
}

type couponResponse struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	MaxDiscount float64 `json:"maxDiscount,omitempty"`
	Active      bool    `json:"active"`
	ShopID      string  `json:"shopId,omitempty"`
}

var couponTypes = map[coupon.Type]bool{
	coupon.TypePercentage:   true,
	coupon.TypeFixed:        true,
	coupon.TypeFreeShipping: true,
	coupon.TypeBuyXGetY:     true,
	coupon.TypeFirstOrder:   true,
}

// CreateCoupon creates a coupon. Vendor coupons are scoped to the vendor's
// shop via an implicit shop restriction; admin coupons are platform-wide.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req createCouponRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	cType := coupon.Type(req.Type)
	if !couponTypes[cType] {
		respondError(w, http.StatusBadRequest, "unknown coupon type")
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil || value.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid value")
		return
	}
	maxDiscount := decimal.Zero
	if req.MaxDiscount != "" {
		if maxDiscount, err = decimal.NewFromString(req.MaxDiscount); err != nil || maxDiscount.IsNegative() {
			respondError(w, http.StatusBadRequest, "invalid max discount")
			return
		}
	}

	startsAt := time.Now()
	if req.StartsAt != "" {
		if startsAt, err = time.Parse(time.RFC3339, req.StartsAt); err != nil {
			respondError(w, http.StatusBadRequest, "invalid startsAt")
			return
		}
	}
	var endsAt *time.Time
	if req.EndsAt != "" {
		t, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid endsAt")
			return
		}
		endsAt = &t
	}

	c := &coupon.Coupon{
		ID:          uuid.New().String(),
		Code:        strings.ToUpper(req.Code),
		Description: req.Description,
		Type:        cType,
		Value:       value,
		MaxDiscount: maxDiscount,
		Active:      true,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		CreatedBy:   id.UserID,
	}

	if req.Restriction != nil {
		rest, err := toRestriction(req.Restriction)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		c.Restriction = rest
	}

	// A vendor's coupon only redeems against their own shop's items.
	if id.Role == user.RoleVendor {
		s, err := h.shops.GetByOwner(r.Context(), id.UserID)
		if err != nil {
			if errors.Is(err, shop.ErrNotFound) {
				respondError(w, http.StatusPreconditionFailed, "vendor has no shop")
				return
			}
			respondDomainError(w, r, err)
			return
		}
		c.ShopID = s.ID
		if c.Restriction == nil {
			c.Restriction = &coupon.Restriction{}
		}
		c.Restriction.ShopIDs = []string{s.ID}
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, couponResponse{
		ID:          c.ID,
		Code:        c.Code,
		Type:        string(c.Type),
		Value:       c.Value.InexactFloat64(),
		MaxDiscount: c.MaxDiscount.InexactFloat64(),
		Active:      c.Active,
		ShopID:      c.ShopID,
	})
}

func toRestriction(req *restrictionRequest) (*coupon.Restriction, error) {
	minSpend, maxSpend := decimal.Zero, decimal.Zero
	var err error
	if req.MinSpend != "" {
		if minSpend, err = decimal.NewFromString(req.MinSpend); err != nil {
			return nil, errors.New("invalid min spend")
		}
	}
	if req.MaxSpend != "" {
		if maxSpend, err = decimal.NewFromString(req.MaxSpend); err != nil {
			return nil, errors.New("invalid max spend")
		}
	}
	return &coupon.Restriction{
		UsageLimit:       req.UsageLimit,
		PerUserLimit:     req.PerUserLimit,
		MinSpend:         minSpend,
		MaxSpend:         maxSpend,
		ProductIDs:       req.ProductIDs,
		CategoryIDs:      req.CategoryIDs,
		ShopIDs:          req.ShopIDs,
		UserGroups:       req.UserGroups,
		NewCustomersOnly: req.NewCustomersOnly,
	}, nil
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetCouponActive toggles a coupon's active flag. Vendors may only touch
// coupons they created; admins may touch any.
func (h *Handler) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req setActiveRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if id.Role != user.RoleAdmin && c.CreatedBy != id.UserID {
		respondError(w, http.StatusForbidden, "coupon belongs to another vendor")
		return
	}

	if err := h.coupons.SetActive(r.Context(), c.ID, req.Active); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
