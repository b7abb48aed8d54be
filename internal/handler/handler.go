// Package handler exposes the marketplace API over HTTP. Handlers decode
// requests, delegate to domain services and repositories, and map domain
// errors to HTTP status codes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vendura/vendura/internal/domain/campaign"
	"github.com/vendura/vendura/internal/domain/catalog"
	"github.com/vendura/vendura/internal/domain/coupon"
	"github.com/vendura/vendura/internal/domain/order"
	"github.com/vendura/vendura/internal/domain/shop"
	"github.com/vendura/vendura/internal/domain/user"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, paths are returned as stored.
	ImageBaseURL string
}

// Handler wires the API routes to domain services.
type Handler struct {
	orderService *order.Service
	products     catalog.Repository
	coupons      coupon.Repository
	campaigns    campaign.Repository
	shops        shop.Repository
	orders       order.Repository

	campaignEval *campaign.Evaluator
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	orderService *order.Service,
	products catalog.Repository,
	coupons coupon.Repository,
	campaigns campaign.Repository,
	shops shop.Repository,
	orders order.Repository,
) *Handler {
	return &Handler{
		orderService: orderService,
		products:     products,
		coupons:      coupons,
		campaigns:    campaigns,
		shops:        shops,
		orders:       orders,
		campaignEval: campaign.NewEvaluator(),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes assembles the API router. auth guards everything below the public
// routes; role checks gate the vendor and admin subtrees.
func (h *Handler) Routes(auth *Authenticator) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		// Public catalog surface.
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/campaigns", h.ListCampaigns)

		// Any authenticated user.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAPIKey)

			r.Post("/carts", h.CreateCart)
			r.Post("/carts/{id}/items", h.AddCartItem)
			r.Put("/carts/{id}/coupon", h.ApplyCoupon)
			r.Post("/carts/{id}/campaigns", h.AttachCampaign)
			r.Post("/carts/{id}/checkout", h.Checkout)
			r.Get("/orders", h.ListMyOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
		})

		// Vendors and admins.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAPIKey, auth.RequireRole(user.RoleVendor, user.RoleAdmin))

			r.Post("/products", h.CreateProduct)
			r.Post("/shops", h.CreateShop)
			r.Post("/coupons", h.CreateCoupon)
			r.Patch("/coupons/{id}/active", h.SetCouponActive)
			r.Post("/campaigns", h.CreateCampaign)
			r.Patch("/campaigns/{id}/active", h.SetCampaignActive)
			r.Get("/vendor/orders", h.ListShopOrders)
			r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
		})

		// Admins only.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAPIKey, auth.RequireRole(user.RoleAdmin))

			r.Get("/admin/orders", h.ListAllOrders)
			// Site-wide coupons; CreateCoupon skips the shop restriction for
			// admin callers.
			r.Post("/admin/coupons", h.CreateCoupon)
		})
	})

	return r
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respond(w, code, errorResponse{Code: code, Message: message})
}

// respondDomainError maps domain errors to HTTP responses. Unknown errors
// are logged and answered with a generic 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, shop.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, order.ErrNotCart),
		errors.Is(err, order.ErrNotCancelable):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, coupon.ErrNotApplicable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, order.ErrNotOwner):
		respondError(w, http.StatusForbidden, err.Error())
		return
	}

	var (
		pnfErr *order.ProductNotFoundError
		iqErr  *order.InvalidQuantityError
		itErr  *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &pnfErr), errors.As(err, &iqErr):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.As(err, &itErr):
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
