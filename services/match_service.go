package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/brackets"
	"github.com/Dosada05/smk-league/metrics"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

// SubmitResultInput is the admin direct-edit payload. Version is the version
// the caller last observed; a stale value is rejected, never silently merged.
type SubmitResultInput struct {
	MatchID     int             `validate:"required,gt=0"`
	Score1      int             `validate:"gte=0"`
	Score2      int             `validate:"gte=0"`
	Details     json.RawMessage `validate:"-"`
	Version     int             `validate:"required,gt=0"`
	ActorUserID int             `validate:"-"`
}

type MatchService interface {
	MatchCompleter
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error)
	// SubmitResult is the admin path: one write through the concurrency
	// controller, then advancement or standings recompute.
	SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error)
	// ResolveMismatch completes a match whose two reports disagree, using
	// the admin-adjudicated scores, and clears the pending reports.
	ResolveMismatch(ctx context.Context, input SubmitResultInput) (*models.Match, error)
}

// MatchCompleter is the finalize hook the report reconciler drives once both
// reports agree. It runs inside the reconciler's transaction.
type MatchCompleter interface {
	FinalizeWithScores(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, score1, score2 int, details json.RawMessage, origin string) error
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	reportRepo     repositories.MatchReportRepository
	standings      StandingsRecomputer
	txRunner       TransactionRunner
	auditor        audit.Recorder
	logger         *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	reportRepo repositories.MatchReportRepository,
	standings StandingsRecomputer,
	txRunner TransactionRunner,
	auditor audit.Recorder,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		reportRepo:     reportRepo,
		standings:      standings,
		txRunner:       txRunner,
		auditor:        auditor,
		logger:         logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		s.logger.Error("failed to load match", "match_id", id, "error", err)
		return nil, ErrInternalStorage
	}
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		s.logger.Error("failed to load tournament", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, filter)
	if err != nil {
		s.logger.Error("failed to list matches", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}
	return matches, nil
}

func (s *matchService) SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error) {
	return s.adminWrite(ctx, input, "admin", "match.result_submitted")
}

func (s *matchService) ResolveMismatch(ctx context.Context, input SubmitResultInput) (*models.Match, error) {
	return s.adminWrite(ctx, input, "resolve", "match.mismatch_resolved")
}

func (s *matchService) adminWrite(ctx context.Context, input SubmitResultInput, origin, auditAction string) (*models.Match, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	started := time.Now()
	var updated *models.Match

	err := withWriteRetry(ctx, func(ctx context.Context) error {
		return s.txRunner.InTx(ctx, func(exec repositories.SQLExecutor) error {
			match, err := s.matchRepo.GetByID(ctx, exec, input.MatchID)
			if err != nil {
				if errors.Is(err, repositories.ErrMatchNotFound) {
					return ErrMatchNotFound
				}
				return err
			}

			// Version first: a stale caller learns about the race even when
			// the competing write already completed the match.
			if match.Version != input.Version {
				metrics.VersionConflictsTotal.Inc()
				return &VersionConflictError{MatchID: match.ID, CurrentVersion: match.Version}
			}
			if match.Completed {
				return ErrMatchAlreadyCompleted
			}

			if err := s.FinalizeWithScores(ctx, exec, match, input.Score1, input.Score2, input.Details, origin); err != nil {
				return err
			}

			if err := s.reportRepo.DeleteByMatch(ctx, exec, match.ID); err != nil {
				return err
			}

			updated, err = s.matchRepo.GetByID(ctx, exec, match.ID)
			return err
		})
	})
	if err != nil {
		return nil, s.classifyWriteError(err, input.MatchID)
	}

	metrics.MatchUpdateDuration.Observe(time.Since(started).Seconds())
	s.auditor.Record(ctx, auditAction, intPtr(input.ActorUserID), fmt.Sprintf("match:%d", input.MatchID), map[string]interface{}{
		"score1":  input.Score1,
		"score2":  input.Score2,
		"version": updated.Version,
	})
	return updated, nil
}

// FinalizeWithScores marks the match completed with the given scores and
// runs the post-completion effects: bracket advancement for finals matches,
// standings recompute for qualification matches. It must run inside the
// caller's transaction so advancement and completion commit atomically.
func (s *matchService) FinalizeWithScores(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, score1, score2 int, details json.RawMessage, origin string) error {
	if match.Slot1ID == nil || match.Slot2ID == nil {
		return ErrMatchSlotsNotFilled
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, exec, match.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}

	outcome := classifyScores(tournament.Format, score1, score2)
	var winnerID *int
	switch outcome {
	case outcomeWin:
		winnerID = match.Slot1ID
	case outcomeLoss:
		winnerID = match.Slot2ID
	case outcomeTie:
		if match.Stage == models.StageFinals {
			return ErrTieNotAllowedFinals
		}
	}

	upd := repositories.MatchResultUpdate{
		Score1:    intPtr(score1),
		Score2:    intPtr(score2),
		Details:   details,
		WinnerID:  winnerID,
		Completed: true,
	}
	if err := s.matchRepo.UpdateResult(ctx, exec, match.ID, match.Version, upd); err != nil {
		return err
	}
	metrics.MatchUpdatesTotal.WithLabelValues(origin).Inc()

	if match.Stage == models.StageQualification {
		if err := s.standings.Recompute(ctx, exec, tournament, *match.Slot1ID); err != nil {
			return err
		}
		return s.standings.Recompute(ctx, exec, tournament, *match.Slot2ID)
	}

	winnerSlot := 1
	if winnerID != nil && match.Slot2ID != nil && *winnerID == *match.Slot2ID {
		winnerSlot = 2
	}
	loserID := 0
	if winnerSlot == 1 && match.Slot2ID != nil {
		loserID = *match.Slot2ID
	} else if winnerSlot == 2 && match.Slot1ID != nil {
		loserID = *match.Slot1ID
	}
	return s.advance(ctx, exec, tournament, match.Seq, *winnerID, loserID, winnerSlot)
}

// advance applies the resolver's slot assignments, auto-completing walkover
// matches as they fill. Walkover completion re-enters advance, so a single
// result write can cascade several sequences down the losers bracket.
func (s *matchService) advance(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, completedSeq, winnerID, loserID, winnerSlot int) error {
	topology, err := brackets.GenerateDoubleElimination(brackets.DoubleEliminationSize)
	if err != nil {
		return err
	}

	adv, err := brackets.ResolveAdvancement(topology, completedSeq, winnerID, loserID, winnerSlot)
	if err != nil {
		return err
	}

	if adv.ChampionID != 0 {
		return s.tournamentRepo.SetChampion(ctx, exec, tournament.ID, adv.ChampionID)
	}

	for _, assignment := range adv.Assignments {
		if err := s.fillSlot(ctx, exec, tournament, topology, assignment); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchService) fillSlot(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, topology []brackets.TopologyEntry, assignment brackets.SlotAssignment) error {
	target, err := s.matchRepo.GetByStageSeq(ctx, exec, tournament.ID, models.StageFinals, assignment.TargetSeq)
	if err != nil {
		return fmt.Errorf("advancement target seq %d missing: %w", assignment.TargetSeq, err)
	}

	slot1, slot2 := target.Slot1ID, target.Slot2ID
	if assignment.Slot == 1 {
		slot1 = intPtr(assignment.CompetitorID)
	} else {
		slot2 = intPtr(assignment.CompetitorID)
	}
	if err := s.matchRepo.UpdateSlots(ctx, exec, target.ID, target.Version, slot1, slot2); err != nil {
		return err
	}

	if !brackets.IsWalkover(topology, assignment.TargetSeq) {
		return nil
	}

	// A walkover match has a single inbound edge; its lone competitor wins
	// the moment they arrive, with no scores recorded.
	refreshed, err := s.matchRepo.GetByStageSeq(ctx, exec, tournament.ID, models.StageFinals, assignment.TargetSeq)
	if err != nil {
		return err
	}
	upd := repositories.MatchResultUpdate{
		WinnerID:  intPtr(assignment.CompetitorID),
		Completed: true,
	}
	if err := s.matchRepo.UpdateResult(ctx, exec, refreshed.ID, refreshed.Version, upd); err != nil {
		return err
	}
	metrics.MatchUpdatesTotal.WithLabelValues("walkover").Inc()

	return s.advance(ctx, exec, tournament, assignment.TargetSeq, assignment.CompetitorID, 0, assignment.Slot)
}

// classifyWriteError folds a failed write into the service error taxonomy.
// A repository-level version conflict means the row moved between our read
// and our CAS inside the same request; re-read for the current version so
// the client gets an actionable conflict.
func (s *matchService) classifyWriteError(err error, matchID int) error {
	var conflict *VersionConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation
	}
	switch {
	case errors.Is(err, ErrMatchNotFound),
		errors.Is(err, ErrTournamentNotFound),
		errors.Is(err, ErrMatchAlreadyCompleted),
		errors.Is(err, ErrTieNotAllowedFinals),
		errors.Is(err, ErrMatchSlotsNotFilled):
		return err
	case errors.Is(err, repositories.ErrMatchVersionConflict):
		metrics.VersionConflictsTotal.Inc()
		current, readErr := s.matchRepo.GetByID(context.Background(), nil, matchID)
		if readErr != nil {
			return &VersionConflictError{MatchID: matchID}
		}
		return &VersionConflictError{MatchID: matchID, CurrentVersion: current.Version}
	}
	s.logger.Error("match write failed", "match_id", matchID, "error", err)
	return ErrInternalStorage
}
