package models

import (
	"encoding/json"
	"time"
)

// ReportState is derived from the pair of pending reports for a match,
// never stored as a column.
type ReportState string

const (
	ReportStateNoReports   ReportState = "no_reports"
	ReportStateOneReported ReportState = "one_reported"
	ReportStateConfirmed   ReportState = "confirmed"
	ReportStateMismatched  ReportState = "mismatched"
)

// MatchReport is one side's pending score submission, keyed by
// (match_id, slot). Reports are deleted once the match is confirmed, so the
// authoritative Match row stays purely post-confirmation data.
type MatchReport struct {
	ID           int             `json:"id" db:"id"`
	MatchID      int             `json:"match_id" db:"match_id"`
	Slot         int             `json:"slot" db:"slot"`
	CompetitorID int             `json:"competitor_id" db:"competitor_id"`
	Score1       int             `json:"score1" db:"score1"`
	Score2       int             `json:"score2" db:"score2"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	SubmittedAt  time.Time       `json:"submitted_at" db:"submitted_at"`
}

// Agrees reports whether both submissions claim the same score pair.
// Exact numeric match is required on both components.
func (r *MatchReport) Agrees(other *MatchReport) bool {
	if other == nil {
		return false
	}
	return r.Score1 == other.Score1 && r.Score2 == other.Score2
}
