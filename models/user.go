package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

// User is an account. A player account controls exactly one competitor via
// CompetitorID; admins act on any slot.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CompetitorID *int      `json:"competitor_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
