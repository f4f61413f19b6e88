package models

import "time"

// QualificationRecord is a per-tournament, per-competitor aggregate. It is a
// cache derived by replaying the competitor's completed qualification
// matches; it is recomputed as a full replacement, never patched in place,
// and never edited by clients.
type QualificationRecord struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	CompetitorID int       `json:"competitor_id" db:"competitor_id"`
	Played       int       `json:"played" db:"played"`
	Wins         int       `json:"wins" db:"wins"`
	Ties         int       `json:"ties" db:"ties"`
	Losses       int       `json:"losses" db:"losses"`
	Diff         int       `json:"diff" db:"diff"`
	Points       int       `json:"points" db:"points"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	Competitor *Competitor `json:"competitor,omitempty" db:"-"`
}
