package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleViewer UserRole = "viewer"
)

type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Nickname     *string   `json:"nickname,omitempty" db:"nickname"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	EmailConfirmed         bool   `json:"email_confirmed" db:"email_confirmed"`
	EmailConfirmationToken string `json:"-" db:"email_confirmation_token"`
}
