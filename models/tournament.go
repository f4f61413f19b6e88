package models

import "time"

// TournamentFormat selects how match scores are interpreted.
type TournamentFormat string

const (
	// FormatRounds scores a match as rounds won by each side.
	FormatRounds TournamentFormat = "rounds"
	// FormatPoints scores a match as accumulated points.
	FormatPoints TournamentFormat = "points"
	// FormatPositions scores a match as finishing positions; lower wins.
	FormatPositions TournamentFormat = "positions"
)

// TournamentStatus values correspond to the ENUM in the database.
type TournamentStatus string

const (
	StatusSoon          TournamentStatus = "soon"
	StatusRegistration  TournamentStatus = "registration"
	StatusQualification TournamentStatus = "qualification"
	StatusFinals        TournamentStatus = "finals"
	StatusCompleted     TournamentStatus = "completed"
	StatusCanceled      TournamentStatus = "canceled"
)

type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Season      *string          `json:"season,omitempty" db:"season"`
	Format      TournamentFormat `json:"format" db:"format"`
	Status      TournamentStatus `json:"status" db:"status"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`
	RegDate     time.Time        `json:"reg_date" db:"reg_date"`
	StartDate   time.Time        `json:"start_date" db:"start_date"`
	EndDate     time.Time        `json:"end_date" db:"end_date"`
	ChampionID  *int             `json:"champion_competitor_id,omitempty" db:"champion_competitor_id"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}
