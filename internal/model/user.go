// Package model defines domain entities for the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// ErrIncompleteUser indicates a user record lacks the fields required for an
// external representation (active flag and timestamps are set by storage).
var ErrIncompleteUser = errors.New("user record is incomplete")

// DefaultRole is the role claim carried by tokens issued to registered users.
const DefaultRole = "user"

// User represents a registered account.
type User struct {
	ID           int32      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Active       *bool      `json:"active,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted returns true if the user has been soft deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// IsActive returns true if the user is live and flagged active.
func (u *User) IsActive() bool {
	return !u.IsDeleted() && u.Active != nil && *u.Active
}

// CreateUserRequest represents a request to register a new user.
// Password is plaintext and must never be stored or logged.
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Normalize trims names and lower-cases the email in place.
// The password is left untouched.
func (r *CreateUserRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = NormalizeEmail(r.Email)
}

// NormalizeEmail returns the canonical form used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserResponse is the API representation of a user.
type UserResponse struct {
	ID        int32     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse builds the API representation of a persisted user.
// Returns ErrIncompleteUser if storage-populated fields are missing.
func NewUserResponse(u *User) (*UserResponse, error) {
	if u == nil || u.Active == nil || u.CreatedAt == nil || u.UpdatedAt == nil {
		return nil, ErrIncompleteUser
	}

	return &UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Active:    *u.Active,
		CreatedAt: *u.CreatedAt,
		UpdatedAt: *u.UpdatedAt,
	}, nil
}

// TokenRequest represents login credentials exchanged for a token.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned after a successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
