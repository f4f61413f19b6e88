package models

import (
	"encoding/json"
	"time"
)

type MatchStage string

const (
	StageQualification MatchStage = "qualification"
	StageFinals        MatchStage = "finals"
)

// Match is the central mutable entity. All writes go through the optimistic
// concurrency controller: every successful write bumps Version by exactly 1,
// and no write succeeds against a stale version.
type Match struct {
	ID           int             `json:"id" db:"id"`
	TournamentID int             `json:"tournament_id" db:"tournament_id"`
	Seq          int             `json:"seq" db:"seq"`
	Stage        MatchStage      `json:"stage" db:"stage"`
	Round        *string         `json:"round,omitempty" db:"round"`
	BracketSide  *string         `json:"bracket_side,omitempty" db:"bracket_side"`
	Slot1ID      *int            `json:"slot1_competitor_id,omitempty" db:"slot1_competitor_id"`
	Slot2ID      *int            `json:"slot2_competitor_id,omitempty" db:"slot2_competitor_id"`
	Score1       *int            `json:"score1,omitempty" db:"score1"`
	Score2       *int            `json:"score2,omitempty" db:"score2"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	WinnerID     *int            `json:"winner_competitor_id,omitempty" db:"winner_competitor_id"`
	Completed    bool            `json:"completed" db:"completed"`
	Version      int             `json:"version" db:"version"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`

	// Optional linked data, populated by services, not mapped directly.
	Slot1 *Competitor `json:"slot1_competitor,omitempty" db:"-"`
	Slot2 *Competitor `json:"slot2_competitor,omitempty" db:"-"`
}

// SlotCompetitor returns the competitor id occupying the given slot, or nil.
func (m *Match) SlotCompetitor(slot int) *int {
	switch slot {
	case 1:
		return m.Slot1ID
	case 2:
		return m.Slot2ID
	}
	return nil
}

// CompetitorSlot returns the slot (1 or 2) occupied by the competitor,
// or 0 when the competitor is not part of the match.
func (m *Match) CompetitorSlot(competitorID int) int {
	if m.Slot1ID != nil && *m.Slot1ID == competitorID {
		return 1
	}
	if m.Slot2ID != nil && *m.Slot2ID == competitorID {
		return 2
	}
	return 0
}
