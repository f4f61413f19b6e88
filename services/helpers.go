package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

var validate = validator.New()

// validateInput runs struct-tag validation and converts the first failure
// into a field-level ValidationError.
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return ErrValidationFailed
	}
	first := validationErrors[0]
	return &ValidationError{
		Field:   first.Field(),
		Message: fmt.Sprintf("failed on the %q rule", first.Tag()),
	}
}

// TransactionRunner abstracts transaction scoping so services can be tested
// with an in-memory runner.
type TransactionRunner interface {
	InTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type dbTxRunner struct {
	db *sql.DB
}

func NewDBTxRunner(db *sql.DB) TransactionRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) InTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	err = fn(tx)
	return err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v int) *int { return &v }

// matchOutcome classifies one completed match from the perspective of the
// competitor occupying ownSlot.
type matchOutcome int

const (
	outcomeTie matchOutcome = iota
	outcomeWin
	outcomeLoss
)

// classifyScores applies the format rule: rounds and points formats award
// the higher score; positions format awards the LOWER one (a finishing
// position of 1 beats 2). Equal scores are a tie.
func classifyScores(format models.TournamentFormat, ownScore, oppScore int) matchOutcome {
	if ownScore == oppScore {
		return outcomeTie
	}
	ownWins := ownScore > oppScore
	if format == models.FormatPositions {
		ownWins = ownScore < oppScore
	}
	if ownWins {
		return outcomeWin
	}
	return outcomeLoss
}

// secondaryMetric is the tiebreak quantity accumulated per match: raw points
// for the points format, score differential for rounds, and opponent minus
// own for positions (finishing ahead yields a positive contribution).
func secondaryMetric(format models.TournamentFormat, ownScore, oppScore int) int {
	switch format {
	case models.FormatPoints:
		return ownScore
	case models.FormatPositions:
		return oppScore - ownScore
	default:
		return ownScore - oppScore
	}
}

func validateTournamentDates(reg, start, end time.Time) error {
	if reg.IsZero() || start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "dates", Message: "reg_date, start_date and end_date are required"}
	}
	if reg.After(start) {
		return fmt.Errorf("%w: registration date (%s) cannot be after start date (%s)",
			ErrTournamentInvalidRegDate, reg.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date (%s) must be before end date (%s)",
			ErrTournamentInvalidDateRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusSoon:          {models.StatusRegistration, models.StatusCanceled},
		models.StatusRegistration:  {models.StatusQualification, models.StatusCanceled},
		models.StatusQualification: {models.StatusFinals, models.StatusCanceled},
		models.StatusFinals:        {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted:     {},
		models.StatusCanceled:      {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// GetExtensionFromContentType maps an upload's content type to a storage key
// extension. Only image types competitors may use as avatars are allowed.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("unsupported content type for avatar: %s", contentType)
	}
}
