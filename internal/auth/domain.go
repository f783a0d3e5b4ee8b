// Package auth provides credential verification and bearer token sessions
// for the API.
package auth

import (
	"errors"
	"time"
)

// User represents an API user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	// ErrInvalidCredentials covers unknown email, wrong password and
	// disabled accounts alike, so responses never leak which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenInvalid indicates a missing, expired or revoked token.
	ErrTokenInvalid = errors.New("invalid or expired token")
)
