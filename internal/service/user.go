package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
	"github.com/kader009/trustedge-backend/pkg/pagination"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// UserService implements registration, sign-in and account management.
type UserService struct {
	store  repository.Store
	hasher *auth.Hasher
	tokens *auth.JWTManager
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(store repository.Store, hasher *auth.Hasher, tokens *auth.JWTManager, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
	Image    string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput holds the parameters for updating a user's profile.
type UpdateProfileInput struct {
	Name    *string
	Phone   *string
	Address *string
	Image   *string
}

// AdminUpdateUserInput holds the fields an admin may change on an account.
type AdminUpdateUserInput struct {
	Role   *string
	Status *string
}

// Register creates an active account with the user role and signs it in.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, apperrors.InvalidInput("name is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		Phone:        input.Phone,
		Address:      input.Address,
		Image:        input.Image,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.tokens.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, tokens, nil
}

// Login checks the credentials of an active account and issues tokens.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}
	ok, err := s.hasher.Compare(user.PasswordHash, input.Password)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}
	if !user.CanSignIn() {
		return nil, nil, apperrors.Forbidden(fmt.Sprintf("account is %s", user.Status))
	}

	tokens, err := s.tokens.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)
	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair. The current role
// and status of the account are read again, so a ban takes effect on the
// next refresh.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.CanSignIn() {
		return nil, apperrors.Forbidden(fmt.Sprintf("account is %s", user.Status))
	}

	tokens, err := s.tokens.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)
	return tokens, nil
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, actor *auth.Identity) (*domain.User, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, actor *auth.Identity, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		user.Name = name
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.Address != nil {
		user.Address = *input.Address
	}
	if input.Image != nil {
		user.Image = *input.Image
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// UpdatePassword replaces the caller's password after checking the current
// one.
func (s *UserService) UpdatePassword(ctx context.Context, actor *auth.Identity, currentPassword, newPassword string) error {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Compare(user.PasswordHash, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.InvalidInput("current password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = digest
	user.UpdatedAt = time.Now().UTC()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	s.logger.InfoContext(ctx, "password updated",
		slog.String("user_id", user.ID),
	)
	return nil
}

// ListUsers returns accounts matching the filter. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *auth.Identity, filter repository.UserFilter, params pagination.Params) (pagination.Result[domain.User], error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return pagination.Result[domain.User]{}, err
	}
	if filter.Role != "" && !domain.IsValidRole(filter.Role) {
		return pagination.Result[domain.User]{}, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", filter.Role))
	}
	if filter.Status != "" && !domain.IsValidUserStatus(filter.Status) {
		return pagination.Result[domain.User]{}, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", filter.Status))
	}

	filter.Offset = params.Offset
	filter.Limit = params.Limit
	users, total, err := s.store.Users().List(ctx, filter)
	if err != nil {
		return pagination.Result[domain.User]{}, fmt.Errorf("list users: %w", err)
	}
	return pagination.NewResult(users, total, params), nil
}

// GetUser returns one account. Admin only.
func (s *UserService) GetUser(ctx context.Context, actor *auth.Identity, id string) (*domain.User, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateUser changes the role or status of an account. Admin only.
func (s *UserService) UpdateUser(ctx context.Context, actor *auth.Identity, id string, input AdminUpdateUserInput) (*domain.User, error) {
	user, err := s.GetUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if input.Role != nil {
		if !domain.IsValidRole(*input.Role) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", *input.Role))
		}
		user.Role = domain.Role(*input.Role)
	}
	if input.Status != nil {
		if !domain.IsValidUserStatus(*input.Status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *input.Status))
		}
		user.Status = domain.UserStatus(*input.Status)
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user updated by admin",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.String("status", string(user.Status)),
		slog.String("admin_id", actor.UserID),
	)
	return user, nil
}

// DeleteUser soft-deletes an account. Admin only.
func (s *UserService) DeleteUser(ctx context.Context, actor *auth.Identity, id string) error {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if actor.Is(id) {
		return apperrors.InvalidInput("admins cannot delete their own account")
	}
	if err := s.store.Users().SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", id),
		slog.String("admin_id", actor.UserID),
	)
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.InvalidInput("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperrors.InvalidInput("email is not a valid address")
	}
	return email, nil
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
