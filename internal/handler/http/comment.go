package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/service"
	"github.com/kader009/trustedge-backend/pkg/httputil"
)

// CommentHandler handles comment thread endpoints.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

// NewCommentHandler creates a new comment HTTP handler.
func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// --- Request DTOs ---

// CreateCommentRequest is the JSON body for POST /comments. ParentComment
// is set when replying to a top-level comment.
type CreateCommentRequest struct {
	ReviewID      string  `json:"review_id" validate:"required"`
	ParentComment *string `json:"parent_comment"`
	Text          string  `json:"text" validate:"required"`
}

// UpdateCommentRequest is the JSON body for PUT /comments/{id}.
type UpdateCommentRequest struct {
	Text string `json:"text" validate:"required"`
}

type deleteResponse struct {
	Affected int `json:"affected"`
}

type countResponse struct {
	Count int `json:"count"`
}

// --- Handlers ---

// CreateComment handles POST /api/v1/comments.
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if !decode(w, r, &req) {
		return
	}

	comment, err := h.comments.CreateComment(r.Context(), auth.IdentityFromContext(r.Context()), service.CreateCommentInput{
		ReviewID: req.ReviewID,
		ParentID: req.ParentComment,
		Text:     req.Text,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, comment)
}

// GetReviewComments handles GET /api/v1/reviews/{id}/comments.
func (h *CommentHandler) GetReviewComments(w http.ResponseWriter, r *http.Request) {
	threads, err := h.comments.GetReviewComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, threads)
}

// GetCommentCount handles GET /api/v1/reviews/{id}/comments/count.
func (h *CommentHandler) GetCommentCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.comments.GetCommentCount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, countResponse{Count: count})
}

// GetComment handles GET /api/v1/comments/{id}.
func (h *CommentHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	comment, err := h.comments.GetSingleComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, comment)
}

// GetCommentReplies handles GET /api/v1/comments/{id}/replies.
func (h *CommentHandler) GetCommentReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.comments.GetCommentReplies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, replies)
}

// GetMyComments handles GET /api/v1/comments/mine.
func (h *CommentHandler) GetMyComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.GetUserComments(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, comments)
}

// UpdateComment handles PUT /api/v1/comments/{id}.
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var req UpdateCommentRequest
	if !decode(w, r, &req) {
		return
	}

	comment, err := h.comments.UpdateComment(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, comment)
}

// DeleteComment handles DELETE /api/v1/comments/{id}. Deleting a top-level
// comment also soft-deletes its replies.
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	affected, err := h.comments.DeleteComment(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, deleteResponse{Affected: affected})
}

// HardDeleteComment handles DELETE /api/v1/admin/comments/{id}.
func (h *CommentHandler) HardDeleteComment(w http.ResponseWriter, r *http.Request) {
	affected, err := h.comments.HardDeleteComment(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, deleteResponse{Affected: affected})
}
