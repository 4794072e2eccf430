package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/service"
	"github.com/kader009/trustedge-backend/pkg/httputil"
	"github.com/kader009/trustedge-backend/pkg/pagination"
)

const defaultProductPageSize = 20

// CatalogHandler handles category and product endpoints.
type CatalogHandler struct {
	categories *service.CategoryService
	products   *service.ProductService
	logger     *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(categories *service.CategoryService, products *service.ProductService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{categories: categories, products: products, logger: logger}
}

// --- Request DTOs ---

// CategoryRequest is the JSON body for creating or updating a category.
type CategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Image       *string `json:"image" validate:"omitempty,url"`
	IsActive    *bool   `json:"is_active"`
}

func (req CategoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		IsActive:    req.IsActive,
	}
}

// ProductRequest is the JSON body for creating or updating a product.
// Rating aggregates are not accepted.
type ProductRequest struct {
	Title         *string  `json:"title" validate:"omitempty,min=1,max=500"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	DetailsDesc   *string  `json:"details_desc" validate:"omitempty,max=10000"`
	Price         *int64   `json:"price" validate:"omitempty,gt=0"`
	DiscountPrice *int64   `json:"discount_price" validate:"omitempty,gte=0"`
	CategoryID    *string  `json:"category_id" validate:"omitempty,min=1"`
	Brand         *string  `json:"brand" validate:"omitempty,max=100"`
	Images        []string `json:"images" validate:"omitempty,max=20,dive,url"`
	Stock         *int     `json:"stock" validate:"omitempty,gte=0"`
	Tags          []string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	Size          *string  `json:"size" validate:"omitempty,max=50"`
	IsActive      *bool    `json:"is_active"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Title:         req.Title,
		Description:   req.Description,
		DetailsDesc:   req.DetailsDesc,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		CategoryID:    req.CategoryID,
		Brand:         req.Brand,
		Images:        req.Images,
		Stock:         req.Stock,
		Tags:          req.Tags,
		Size:          req.Size,
		IsActive:      req.IsActive,
	}
}

// --- Category handlers ---

// ListActiveCategories handles GET /api/v1/categories.
func (h *CatalogHandler) ListActiveCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListActiveCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}

// ListAllCategories handles GET /api/v1/admin/categories.
func (h *CatalogHandler) ListAllCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListAllCategories(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}

// CreateCategory handles POST /api/v1/categories.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}

	category, err := h.categories.CreateCategory(r.Context(), auth.IdentityFromContext(r.Context()), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, category)
}

// GetCategory handles GET /api/v1/categories/{id}.
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.categories.GetCategory(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, category)
}

// UpdateCategory handles PUT /api/v1/categories/{id}.
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}

	category, err := h.categories.UpdateCategory(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/v1/categories/{id}.
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.DeleteCategory(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "category deleted")
}

// --- Product handlers ---

// ListProducts handles GET /api/v1/products.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.products.ListProducts(r.Context(), r.URL.Query().Get("category_id"), pagination.FromRequest(r, defaultProductPageSize))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// GetProduct handles GET /api/v1/products/{idOrSlug}. It accepts both a
// UUID and a slug.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetProduct(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products.
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}

	product, err := h.products.CreateProduct(r.Context(), auth.IdentityFromContext(r.Context()), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.DeleteProduct(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "product deleted")
}
