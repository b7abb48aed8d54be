package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/vendura/vendura/internal/domain/shop"
)

type createShopRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type shopResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// CreateShop opens the calling vendor's storefront. Each vendor owns at
// most one shop.
func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req createShopRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := h.shops.GetByOwner(r.Context(), id.UserID); err == nil {
		respondError(w, http.StatusConflict, "vendor already owns a shop")
		return
	} else if !errors.Is(err, shop.ErrNotFound) {
		respondDomainError(w, r, err)
		return
	}

	s := &shop.Shop{
		ID:          uuid.New().String(),
		OwnerID:     id.UserID,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if err := h.shops.Create(r.Context(), s); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, shopResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Active:      s.Active,
	})
}
