package models

import "time"

// Competitor is a registered racer. Competitors referenced by matches are
// never hard-deleted, only flagged.
type Competitor struct {
	ID          int       `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Handle      string    `json:"handle" db:"handle"`
	AvatarKey   *string   `json:"-" db:"avatar_key"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"-"`
	Deleted     bool      `json:"deleted,omitempty" db:"deleted"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
