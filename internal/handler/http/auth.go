package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/service"
	"github.com/kader009/trustedge-backend/pkg/httputil"
	"github.com/kader009/trustedge-backend/pkg/middleware"
)

// RefreshTokenCookie names the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// CookieConfig controls the token cookies written on sign-in.
type CookieConfig struct {
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// AuthHandler handles registration and token endpoints.
type AuthHandler struct {
	users   *service.UserService
	cookies CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(users *service.UserService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Address  string `json:"address" validate:"omitempty,max=500"`
	Image    string `json:"image" validate:"omitempty,url"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the JSON body for POST /auth/refresh. The token may
// come from the refreshToken cookie instead.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// authResponse is returned by register and login.
type authResponse struct {
	User   *domain.User      `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, tokens, err := h.users.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
		Image:    req.Image,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.setTokenCookies(w, tokens)
	httputil.WriteData(w, http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	user, tokens, err := h.users.Login(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.setTokenCookies(w, tokens)
	httputil.WriteData(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength > 0 {
		if !decode(w, r, &req) {
			return
		}
	}
	if req.RefreshToken == "" {
		if c, err := r.Cookie(RefreshTokenCookie); err == nil {
			req.RefreshToken = c.Value
		}
	}

	tokens, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.setTokenCookies(w, tokens)
	httputil.WriteData(w, http.StatusOK, tokens)
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so this
// only clears the cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearTokenCookies(w)
	httputil.WriteMessage(w, http.StatusOK, "logged out")
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, tokens *domain.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, h.cookies.AccessMaxAge))
	http.SetCookie(w, h.cookie(RefreshTokenCookie, tokens.RefreshToken, h.cookies.RefreshMaxAge))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *AuthHandler) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
