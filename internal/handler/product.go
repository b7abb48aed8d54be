package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendura/vendura/internal/domain/campaign"
	"github.com/vendura/vendura/internal/domain/catalog"
	"github.com/vendura/vendura/internal/domain/shop"
)

type productResponse struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shopId"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	SKU         string          `json:"sku"`
	Price       float64         `json:"price"`
	// FinalPrice is the display price after the product-level discount and
	// the best applicable active campaign.
	FinalPrice float64           `json:"finalPrice"`
	Stock      int               `json:"stock"`
	InStock    bool              `json:"inStock"`
	Tags       []string          `json:"tags,omitempty"`
	Image      *imageResponse    `json:"image,omitempty"`
	Variants   []variantResponse `json:"variants,omitempty"`
}

type imageResponse struct {
	Thumbnail string `json:"thumbnail,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
	Tablet    string `json:"tablet,omitempty"`
	Desktop   string `json:"desktop,omitempty"`
}

type variantResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	SKU        string  `json:"sku"`
	PriceDelta float64 `json:"priceDelta"`
	Stock      int     `json:"stock"`
}

// ListProducts returns all published products with campaign-adjusted prices.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	active, err := h.campaigns.ListActive(r.Context(), time.Now())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = h.toProductResponse(&products[i], active)
	}
	respond(w, http.StatusOK, out)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	active, err := h.campaigns.ListActive(r.Context(), time.Now())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := h.toProductResponse(p, active)
	respond(w, http.StatusOK, resp)
}

// toProductResponse builds the display view of a product. Campaigns come
// pre-sorted by priority; the first applicable one sets the final price.
func (h *Handler) toProductResponse(p *catalog.Product, active []campaign.Campaign) productResponse {
	final := p.DiscountedPrice()
	view := campaign.ProductView{
		ProductID:  p.ID,
		CategoryID: p.CategoryID,
		ShopID:     p.ShopID,
		Price:      final,
	}
	for i := range active {
		if priced := h.campaignEval.ApplyToProduct(&active[i], view); priced.LessThan(final) {
			final = priced
			break
		}
	}

	resp := productResponse{
		ID:          p.ID,
		ShopID:      p.ShopID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		SKU:         p.SKU,
		Price:       p.BasePrice.InexactFloat64(),
		FinalPrice:  final.InexactFloat64(),
		Stock:       p.Stock,
		InStock:     p.InStock(),
		Tags:        p.Tags,
	}

	if img := h.toImageResponse(p.Image); img != nil {
		resp.Image = img
	}
	for _, v := range p.Variants {
		resp.Variants = append(resp.Variants, variantResponse{
			ID:         v.ID,
			Name:       v.Name,
			SKU:        v.SKU,
			PriceDelta: v.PriceDelta.InexactFloat64(),
			Stock:      v.Stock,
		})
	}
	return resp
}

func (h *Handler) toImageResponse(img catalog.Image) *imageResponse {
	if img == (catalog.Image{}) {
		return nil
	}
	return &imageResponse{
		Thumbnail: h.imageURL(img.Thumbnail),
		Mobile:    h.imageURL(img.Mobile),
		Tablet:    h.imageURL(img.Tablet),
		Desktop:   h.imageURL(img.Desktop),
	}
}

// imageURL prepends the configured base URL to relative image paths.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

type createProductRequest struct {
	CategoryID  string   `json:"categoryId"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	SKU         string   `json:"sku"`
	Price       string   `json:"price"`
	Discount    string   `json:"discount"`
	Stock       int      `json:"stock"`
	Tags        []string `json:"tags"`
}

// CreateProduct creates a product in the calling vendor's shop. Admins may
// not create products: every product belongs to a shop.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req createProductRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.SKU == "" {
		respondError(w, http.StatusBadRequest, "name and sku are required")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid price")
		return
	}
	discount := decimal.Zero
	if req.Discount != "" {
		if discount, err = decimal.NewFromString(req.Discount); err != nil || discount.IsNegative() {
			respondError(w, http.StatusBadRequest, "invalid discount")
			return
		}
	}

	s, err := h.shops.GetByOwner(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			respondError(w, http.StatusPreconditionFailed, "vendor has no shop")
			return
		}
		respondDomainError(w, r, err)
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}

	p := &catalog.Product{
		ID:          uuid.New().String(),
		ShopID:      s.ID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		SKU:         req.SKU,
		BasePrice:   price,
		Discount:    discount,
		Stock:       req.Stock,
		Status:      catalog.StatusPublished,
		Tags:        req.Tags,
		CreatedBy:   id.UserID,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, h.toProductResponse(p, nil))
}

// slugify lowercases the name and replaces runs of non-alphanumerics with
// single dashes.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
