package types

import (
	"strings"
	"time"
)

// User is an account. Every task belongs to exactly one user.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`

	// Email is the login identifier. It is stored in NormalizeEmail form and
	// is unique regardless of case.
	Email string `json:"email" db:"email"`

	// PasswordHash is the bcrypt hash and is never serialized.
	PasswordHash string `json:"-" db:"password_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt moves on password changes and resets.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
