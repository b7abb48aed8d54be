package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/vendura/vendura/internal/domain/order"
	"github.com/vendura/vendura/internal/domain/shop"
	"github.com/vendura/vendura/internal/domain/user"
)

type orderResponse struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	CouponCode  string             `json:"couponCode,omitempty"`
	CampaignIDs []string           `json:"campaignIds,omitempty"`
	Items       []lineItemResponse `json:"items"`
	Subtotal    float64            `json:"subtotal"`
	Tax         float64            `json:"tax"`
	Shipping    float64            `json:"shipping"`
	Discount    float64            `json:"discount"`
	Total       float64            `json:"total"`
}

type lineItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]lineItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = lineItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Quantity:  it.Quantity,
		}
	}
	return orderResponse{
		ID:          o.ID,
		Status:      string(o.Status),
		CouponCode:  o.CouponCode,
		CampaignIDs: o.CampaignIDs,
		Items:       items,
		Subtotal:    o.Subtotal.InexactFloat64(),
		Tax:         o.TaxAmount.InexactFloat64(),
		Shipping:    o.ShippingCost.InexactFloat64(),
		Discount:    o.DiscountAmount.InexactFloat64(),
		Total:       o.TotalAmount.InexactFloat64(),
	}
}

// CreateCart opens an empty cart for the caller.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	o, err := h.orderService.CreateCart(r.Context(), id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, toOrderResponse(o))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddCartItem adds a product to the caller's cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.ownedCart(w, r)
	if o == nil || err != nil {
		return
	}

	updated, err := h.orderService.AddProduct(r.Context(), o.ID, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(updated))
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

// ApplyCoupon attaches a coupon code to the caller's cart. An ineligible
// coupon is rejected with 422.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decode(r, &req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	o, err := h.ownedCart(w, r)
	if o == nil || err != nil {
		return
	}

	updated, err := h.orderService.ApplyCoupon(r.Context(), o.ID, req.Code)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(updated))
}

type attachCampaignRequest struct {
	CampaignID string `json:"campaignId"`
}

// AttachCampaign attaches a campaign to the caller's cart.
func (h *Handler) AttachCampaign(w http.ResponseWriter, r *http.Request) {
	var req attachCampaignRequest
	if err := decode(r, &req); err != nil || req.CampaignID == "" {
		respondError(w, http.StatusBadRequest, "campaign id is required")
		return
	}

	o, err := h.ownedCart(w, r)
	if o == nil || err != nil {
		return
	}

	updated, err := h.orderService.AttachCampaign(r.Context(), o.ID, req.CampaignID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(updated))
}

// Checkout places the caller's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedCart(w, r)
	if o == nil || err != nil {
		return
	}

	placed, err := h.orderService.Checkout(r.Context(), o.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(placed))
}

// ownedCart loads the order named in the URL and verifies the caller owns
// it. On failure the response has already been written and nil is returned.
func (h *Handler) ownedCart(w http.ResponseWriter, r *http.Request) (*order.Order, error) {
	id, _ := IdentityFromContext(r.Context())

	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return nil, err
	}
	if o.UserID != id.UserID {
		respondError(w, http.StatusForbidden, order.ErrNotOwner.Error())
		return nil, order.ErrNotOwner
	}
	return o, nil
}

// ListMyOrders returns the caller's orders, carts included.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	list, err := h.orderService.ListByUser(r.Context(), id.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponses(list))
}

// GetOrder returns one of the caller's orders. Admins may read any order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if o.UserID != id.UserID && id.Role != user.RoleAdmin {
		respondError(w, http.StatusForbidden, order.ErrNotOwner.Error())
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}

// CancelOrder cancels one of the caller's pending orders.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	if err := h.orderService.Cancel(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along the fulfilment lifecycle. Vendors
// may only touch orders containing their shop's items.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req updateStatusRequest
	if err := decode(r, &req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "status is required")
		return
	}

	orderID := chi.URLParam(r, "id")
	if id.Role == user.RoleVendor {
		ok, err := h.vendorSellsIn(w, r, orderID, id.UserID)
		if err != nil {
			return
		}
		if !ok {
			respondError(w, http.StatusForbidden, "order contains no items from your shop")
			return
		}
	}

	if err := h.orderService.UpdateStatus(r.Context(), orderID, order.Status(req.Status)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// vendorSellsIn reports whether the vendor's shop has items in the order.
// On error the response has already been written.
func (h *Handler) vendorSellsIn(w http.ResponseWriter, r *http.Request, orderID, vendorID string) (bool, error) {
	s, err := h.shops.GetByOwner(r.Context(), vendorID)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			respondError(w, http.StatusPreconditionFailed, "vendor has no shop")
			return false, err
		}
		respondDomainError(w, r, err)
		return false, err
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		respondDomainError(w, r, err)
		return false, err
	}
	for _, it := range o.Items {
		if it.ShopID == s.ID {
			return true, nil
		}
	}
	return false, nil
}

// ListShopOrders returns placed orders containing the vendor shop's items.
func (h *Handler) ListShopOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	s, err := h.shops.GetByOwner(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			respondError(w, http.StatusPreconditionFailed, "vendor has no shop")
			return
		}
		respondDomainError(w, r, err)
		return
	}

	list, err := h.orders.ListByShop(r.Context(), s.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponses(list))
}

// ListAllOrders returns every placed order.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponses(list))
}

func toOrderResponses(list []order.Order) []orderResponse {
	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = toOrderResponse(&list[i])
	}
	return out
}
