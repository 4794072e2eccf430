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

// ReviewHandler handles review, vote and moderation endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
	votes   *service.VoteService
	recalc  *service.Recalculator
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(reviews *service.ReviewService, votes *service.VoteService, recalc *service.Recalculator, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, votes: votes, recalc: recalc, logger: logger}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON body for POST /reviews.
type CreateReviewRequest struct {
	ProductID   string   `json:"product_id" validate:"required"`
	Rating      int      `json:"rating" validate:"required,gte=1,lte=5"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=5000"`
	Images      []string `json:"images" validate:"omitempty,max=10,dive,url"`
	IsPremium   bool     `json:"is_premium"`
	Price       *int64   `json:"price" validate:"omitempty,gt=0"`
}

// UpdateReviewRequest is the JSON body for PATCH /reviews/{id}.
type UpdateReviewRequest struct {
	Rating      *int     `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Images      []string `json:"images" validate:"omitempty,max=10,dive,url"`
	IsPremium   *bool    `json:"is_premium"`
	Price       *int64   `json:"price" validate:"omitempty,gt=0"`
}

// VoteRequest is the JSON body for PUT /reviews/{id}/vote.
type VoteRequest struct {
	Type string `json:"type" validate:"required,oneof=up down"`
}

// UnpublishRequest is the JSON body for PATCH /admin/reviews/{id}/unpublish.
type UnpublishRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// --- Review handlers ---

// ListReviews handles GET /api/v1/reviews. Only published reviews are
// listed, optionally narrowed by ?product_id.
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.ListReviews(r.Context(), auth.IdentityFromContext(r.Context()),
		r.URL.Query().Get("product_id"), pagination.FromRequest(r, service.DefaultReviewPageSize))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// SearchReviews handles GET /api/v1/reviews/search.
func (h *ReviewHandler) SearchReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := service.SearchReviewsInput{
		Keyword:    q.Get("keyword"),
		ProductID:  q.Get("product_id"),
		CategoryID: q.Get("category_id"),
		Status:     q.Get("status"),
		SortBy:     q.Get("sort_by"),
		Order:      q.Get("order"),
	}

	var ok bool
	if input.Rating, ok = queryInt(r, "rating"); !ok {
		writeInvalidQuery(w, "rating")
		return
	}
	if input.IsPremium, ok = queryBool(r, "is_premium"); !ok {
		writeInvalidQuery(w, "is_premium")
		return
	}
	for key, dst := range map[string]*int{"page": &input.Page, "limit": &input.Limit} {
		v, ok := queryInt(r, key)
		if !ok {
			writeInvalidQuery(w, key)
			return
		}
		if v != nil {
			*dst = *v
		}
	}

	result, err := h.reviews.SearchReviews(r.Context(), auth.IdentityFromContext(r.Context()), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// ListPremiumReviews handles GET /api/v1/reviews/premium.
func (h *ReviewHandler) ListPremiumReviews(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.GetPremiumReviews(r.Context(), auth.IdentityFromContext(r.Context()),
		pagination.FromRequest(r, service.DefaultReviewPageSize))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// GetReview handles GET /api/v1/reviews/{id}.
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.GetReview(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// GetReviewPreview handles GET /api/v1/reviews/{id}/preview.
func (h *ReviewHandler) GetReviewPreview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.GetReviewPreview(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// CreateReview handles POST /api/v1/reviews.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if !decode(w, r, &req) {
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), auth.IdentityFromContext(r.Context()), service.CreateReviewInput{
		ProductID:   req.ProductID,
		Rating:      req.Rating,
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
		IsPremium:   req.IsPremium,
		Price:       req.Price,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

// UpdateReview handles PATCH /api/v1/reviews/{id}.
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var req UpdateReviewRequest
	if !decode(w, r, &req) {
		return
	}

	review, err := h.reviews.UpdateReview(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), service.UpdateReviewInput{
		Rating:      req.Rating,
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
		IsPremium:   req.IsPremium,
		Price:       req.Price,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{id}.
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.DeleteReview(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "review deleted")
}

// --- Vote handlers ---

// CastVote handles PUT /api/v1/reviews/{id}/vote. Repeating the current
// vote removes it.
func (h *ReviewHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.votes.CastVote(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Type)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// RemoveVote handles DELETE /api/v1/reviews/{id}/vote.
func (h *ReviewHandler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	tally, err := h.votes.RemoveVote(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, service.VoteResult{Tally: tally})
}

// GetMyVote handles GET /api/v1/reviews/{id}/vote.
func (h *ReviewHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	vote, err := h.votes.GetMyVote(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, vote)
}

// --- Moderation handlers ---

// ListPendingReviews handles GET /api/v1/admin/reviews/pending.
func (h *ReviewHandler) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.GetPendingReviews(r.Context(), auth.IdentityFromContext(r.Context()),
		pagination.FromRequest(r, service.DefaultReviewPageSize))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// ListReviewsByStatus handles GET /api/v1/admin/reviews/status/{status}.
func (h *ReviewHandler) ListReviewsByStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.GetReviewsByStatus(r.Context(), auth.IdentityFromContext(r.Context()),
		chi.URLParam(r, "status"), pagination.FromRequest(r, service.DefaultReviewPageSize))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// ApproveReview handles PATCH /api/v1/admin/reviews/{id}/approve.
func (h *ReviewHandler) ApproveReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.ApproveReview(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// UnpublishReview handles PATCH /api/v1/admin/reviews/{id}/unpublish.
func (h *ReviewHandler) UnpublishReview(w http.ResponseWriter, r *http.Request) {
	var req UnpublishRequest
	if !decode(w, r, &req) {
		return
	}

	review, err := h.reviews.UnpublishReview(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// RecalculateAll handles POST /api/v1/admin/reviews/recalculate.
func (h *ReviewHandler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.recalc.RecalculateAll(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, report)
}

// RecalculateProduct handles POST /api/v1/admin/reviews/recalculate/{productId}.
func (h *ReviewHandler) RecalculateProduct(w http.ResponseWriter, r *http.Request) {
	stats, err := h.recalc.RecalculateProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}
