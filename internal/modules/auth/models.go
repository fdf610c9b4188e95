// Package auth provides user accounts and bearer-token authentication.
package auth

import (
	"strings"
	"time"

	"stockfolio/internal/domain"
)

// User is an account. PasswordHash never leaves the package.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// SignupInput is the payload for creating an account.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the signup payload.
func (in SignupInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return domain.Validationf("username must not be empty")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Validationf("invalid email address")
	}
	if len(in.Password) < 6 {
		return domain.Validationf("password must be at least 6 characters")
	}
	return nil
}
