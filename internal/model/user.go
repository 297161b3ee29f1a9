package model

import "time"

// Roles assignable to a user account.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleGuest   = "guest"
)

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Bio          string `json:"bio,omitempty"`

	// TwoFactorCode is non-nil only between a successful admin password
	// check and second-factor confirmation. Single use.
	TwoFactorCode      *string    `json:"-"`
	TwoFactorExpiresAt *time.Time `json:"-"`
	TwoFactorAttempts  int        `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
