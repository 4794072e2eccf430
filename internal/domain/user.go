package domain

import (
	"time"
)

// UserStatus is the account state managed by admins.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// IsValidUserStatus checks whether s names a known status.
func IsValidUserStatus(s string) bool {
	switch UserStatus(s) {
	case UserStatusActive, UserStatusInactive, UserStatusBanned:
		return true
	}
	return false
}

// User represents a registered user. Deleted users are kept for audit but
// never returned by lookups.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Phone        string     `json:"phone,omitempty"`
	Address      string     `json:"address,omitempty"`
	Image        string     `json:"image,omitempty"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	IsDeleted    bool       `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CanSignIn reports whether the account may obtain new tokens.
func (u *User) CanSignIn() bool {
	return !u.IsDeleted && u.Status == UserStatusActive
}

// Summary returns the public projection embedded in reviews and comments.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// UserSummary is the author projection populated on reviews and comments.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
