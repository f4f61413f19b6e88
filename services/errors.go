package services

import (
	"errors"
	"fmt"
)

// Shared errors used across services and the HTTP mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed    = errors.New("validation failed")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTieNotAllowedFinals = errors.New("finals matches cannot end in a tie")
	ErrMatchSlotsNotFilled = errors.New("match slots are not filled yet")
	ErrReportSlotInvalid   = errors.New("reporting slot must be 1 or 2")

	// Conflicts
	ErrUserEmailConflict       = errors.New("email address is already in use")
	ErrCompetitorHandleTaken   = errors.New("competitor handle is already in use")
	ErrMatchAlreadyCompleted   = errors.New("match is already completed")
	ErrBracketAlreadyGenerated = errors.New("finals bracket already exists for this tournament")
	ErrTournamentNameConflict  = errors.New("tournament name already exists for this season")

	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrNotSlotOwner         = errors.New("account does not control the reporting slot")

	// Entity-specific not-found (more context than the generic ErrNotFound)
	ErrUserNotFound       = errors.New("user not found")
	ErrCompetitorNotFound = errors.New("competitor not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Tournament lifecycle
	ErrTournamentInvalidRegDate          = errors.New("tournament registration date must precede the start date")
	ErrTournamentInvalidDateRange        = errors.New("tournament end date must be after start date")
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentNotInQualification      = errors.New("tournament is not in the qualification phase")
	ErrTournamentNotReadyForFinals       = errors.New("tournament is not ready for finals")

	// Opaque storage failure; detail lives in logs only.
	ErrInternalStorage = errors.New("internal storage error")
)

// ValidationError names the offending field. Mapped to 422.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// VersionConflictError reports a lost optimistic-lock race. CurrentVersion is
// the row's version after the competing write, so the client can re-read and
// retry with fresh state.
type VersionConflictError struct {
	MatchID        int
	CurrentVersion int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("match %d was modified concurrently (current version %d)", e.MatchID, e.CurrentVersion)
}
