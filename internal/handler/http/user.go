package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/repository"
	"github.com/kader009/trustedge-backend/internal/service"
	"github.com/kader009/trustedge-backend/pkg/httputil"
	"github.com/kader009/trustedge-backend/pkg/pagination"
)

const defaultUserPageSize = 20

// UserHandler handles profile and admin user endpoints.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// --- Request DTOs ---

// UpdateProfileRequest is the JSON body for PUT /users/me.
type UpdateProfileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Image   *string `json:"image" validate:"omitempty,url"`
}

// UpdatePasswordRequest is the JSON body for PATCH /users/me/password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// AdminUpdateUserRequest is the JSON body for PUT /admin/users/{id}.
type AdminUpdateUserRequest struct {
	Role   *string `json:"role" validate:"omitempty,oneof=user admin staff"`
	Status *string `json:"status" validate:"omitempty,oneof=active inactive banned"`
}

// --- Handlers ---

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/v1/users/me.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), auth.IdentityFromContext(r.Context()), service.UpdateProfileInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		Image:   req.Image,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// UpdatePassword handles PATCH /api/v1/users/me/password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.users.UpdatePassword(r.Context(), auth.IdentityFromContext(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "password updated")
}

// ListUsers handles GET /api/v1/admin/users.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.UserFilter{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Search: q.Get("search"),
	}

	result, err := h.users.ListUsers(r.Context(), auth.IdentityFromContext(r.Context()), filter, pagination.FromRequest(r, defaultUserPageSize))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// GetUser handles GET /api/v1/admin/users/{id}.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// UpdateUser handles PUT /api/v1/admin/users/{id}.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req AdminUpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.UpdateUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), service.AdminUpdateUserInput{
		Role:   req.Role,
		Status: req.Status,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/admin/users/{id}.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "user deleted")
}
