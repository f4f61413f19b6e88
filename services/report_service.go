package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/metrics"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

// SubmitReportInput is one side's score claim. Slot names the side being
// reported FOR, not the reporter: admins may report any slot, players only
// the slot their competitor occupies.
type SubmitReportInput struct {
	MatchID           int             `validate:"required,gt=0"`
	Slot              int             `validate:"required,min=1,max=2"`
	Score1            int             `validate:"gte=0"`
	Score2            int             `validate:"gte=0"`
	Details           json.RawMessage `validate:"-"`
	ActorUserID       int             `validate:"-"`
	ActorRole         models.UserRole `validate:"-"`
	ActorCompetitorID *int            `validate:"-"`
}

// ReportStatus is the reconciler's view of one match: the derived state plus
// whatever pending reports exist.
type ReportStatus struct {
	State   models.ReportState    `json:"state"`
	Match   *models.Match         `json:"match"`
	Reports []*models.MatchReport `json:"reports"`
}

type ReportService interface {
	Submit(ctx context.Context, input SubmitReportInput) (*ReportStatus, error)
	GetStatus(ctx context.Context, matchID int) (*ReportStatus, error)
	// ListStale returns pending reports older than the escalation TTL on
	// matches still awaiting confirmation.
	ListStale(ctx context.Context) ([]*models.MatchReport, error)
	// EscalateStale audits and counts stale reports; it never resolves
	// them. Run by the scheduler.
	EscalateStale(ctx context.Context) (int, error)
}

type reportService struct {
	matchRepo  repositories.MatchRepository
	reportRepo repositories.MatchReportRepository
	completer  MatchCompleter
	txRunner   TransactionRunner
	auditor    audit.Recorder
	logger     *slog.Logger
	staleTTL   time.Duration
}

func NewReportService(
	matchRepo repositories.MatchRepository,
	reportRepo repositories.MatchReportRepository,
	completer MatchCompleter,
	txRunner TransactionRunner,
	auditor audit.Recorder,
	logger *slog.Logger,
	staleTTL time.Duration,
) ReportService {
	return &reportService{
		matchRepo:  matchRepo,
		reportRepo: reportRepo,
		completer:  completer,
		txRunner:   txRunner,
		auditor:    auditor,
		logger:     logger,
		staleTTL:   staleTTL,
	}
}

func deriveReportState(match *models.Match, reports []*models.MatchReport) models.ReportState {
	if match.Completed {
		return models.ReportStateConfirmed
	}
	switch len(reports) {
	case 0:
		return models.ReportStateNoReports
	case 1:
		return models.ReportStateOneReported
	}
	if reports[0].Agrees(reports[1]) {
		return models.ReportStateConfirmed
	}
	return models.ReportStateMismatched
}

func (s *reportService) Submit(ctx context.Context, input SubmitReportInput) (*ReportStatus, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var status *ReportStatus

	err := withWriteRetry(ctx, func(ctx context.Context) error {
		return s.txRunner.InTx(ctx, func(exec repositories.SQLExecutor) error {
			match, err := s.matchRepo.GetByID(ctx, exec, input.MatchID)
			if err != nil {
				if errors.Is(err, repositories.ErrMatchNotFound) {
					return ErrMatchNotFound
				}
				return err
			}

			if match.Completed {
				// Idempotent success when the match already carries the
				// scores this report claims; anything else is a real
				// conflict the reporter must see.
				if s.completedWithScores(match, input.Score1, input.Score2) {
					status = &ReportStatus{State: models.ReportStateConfirmed, Match: match, Reports: []*models.MatchReport{}}
					return nil
				}
				return ErrMatchAlreadyCompleted
			}

			if match.Slot1ID == nil || match.Slot2ID == nil {
				return ErrMatchSlotsNotFilled
			}

			slotCompetitor := match.SlotCompetitor(input.Slot)
			if slotCompetitor == nil {
				return ErrReportSlotInvalid
			}
			if input.ActorRole != models.RoleAdmin {
				if input.ActorCompetitorID == nil || *input.ActorCompetitorID != *slotCompetitor {
					return ErrNotSlotOwner
				}
			}

			report := &models.MatchReport{
				MatchID:      match.ID,
				Slot:         input.Slot,
				CompetitorID: *slotCompetitor,
				Score1:       input.Score1,
				Score2:       input.Score2,
				Details:      input.Details,
			}
			if err := s.reportRepo.Upsert(ctx, exec, report); err != nil {
				return err
			}
			metrics.ReportsSubmittedTotal.Inc()

			reports, err := s.reportRepo.ListByMatch(ctx, exec, match.ID)
			if err != nil {
				return err
			}

			if len(reports) < 2 {
				status = &ReportStatus{State: models.ReportStateOneReported, Match: match, Reports: reports}
				return nil
			}

			if !reports[0].Agrees(reports[1]) {
				metrics.ReportsMismatchedTotal.Inc()
				status = &ReportStatus{State: models.ReportStateMismatched, Match: match, Reports: reports}
				return nil
			}

			// Both sides agree: finalize through the concurrency
			// controller and clear the pending pair.
			if err := s.completer.FinalizeWithScores(ctx, exec, match, input.Score1, input.Score2, input.Details, "report"); err != nil {
				return err
			}
			if err := s.reportRepo.DeleteByMatch(ctx, exec, match.ID); err != nil {
				return err
			}
			metrics.ReportsConfirmedTotal.Inc()

			confirmed, err := s.matchRepo.GetByID(ctx, exec, match.ID)
			if err != nil {
				return err
			}
			status = &ReportStatus{State: models.ReportStateConfirmed, Match: confirmed, Reports: []*models.MatchReport{}}
			return nil
		})
	})
	if errors.Is(err, repositories.ErrMatchVersionConflict) {
		// Concurrent double-finalize: the opponent's submit confirmed the
		// same pair of reports first. If the match now carries our scores
		// the submit succeeded in effect.
		match, readErr := s.matchRepo.GetByID(ctx, nil, input.MatchID)
		if readErr == nil && match.Completed && s.completedWithScores(match, input.Score1, input.Score2) {
			status = &ReportStatus{State: models.ReportStateConfirmed, Match: match, Reports: []*models.MatchReport{}}
			err = nil
		} else {
			metrics.VersionConflictsTotal.Inc()
			if readErr == nil {
				return nil, &VersionConflictError{MatchID: input.MatchID, CurrentVersion: match.Version}
			}
			return nil, &VersionConflictError{MatchID: input.MatchID}
		}
	}
	if err != nil {
		return nil, s.classifySubmitError(err, input)
	}

	s.auditor.Record(ctx, "match.report_submitted", intPtr(input.ActorUserID), fmt.Sprintf("match:%d", input.MatchID), map[string]interface{}{
		"slot":   input.Slot,
		"score1": input.Score1,
		"score2": input.Score2,
		"state":  status.State,
	})
	return status, nil
}

func (s *reportService) completedWithScores(match *models.Match, score1, score2 int) bool {
	return match.Score1 != nil && match.Score2 != nil &&
		*match.Score1 == score1 && *match.Score2 == score2
}

func (s *reportService) classifySubmitError(err error, input SubmitReportInput) error {
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
		errors.Is(err, ErrMatchAlreadyCompleted),
		errors.Is(err, ErrMatchSlotsNotFilled),
		errors.Is(err, ErrReportSlotInvalid),
		errors.Is(err, ErrNotSlotOwner),
		errors.Is(err, ErrTieNotAllowedFinals),
		errors.Is(err, ErrTournamentNotFound):
		return err
	}
	s.logger.Error("report submit failed", "match_id", input.MatchID, "error", err)
	return ErrInternalStorage
}

func (s *reportService) GetStatus(ctx context.Context, matchID int) (*ReportStatus, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		s.logger.Error("failed to load match for report status", "match_id", matchID, "error", err)
		return nil, ErrInternalStorage
	}
	reports, err := s.reportRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		s.logger.Error("failed to list reports", "match_id", matchID, "error", err)
		return nil, ErrInternalStorage
	}
	return &ReportStatus{
		State:   deriveReportState(match, reports),
		Match:   match,
		Reports: reports,
	}, nil
}

func (s *reportService) ListStale(ctx context.Context) ([]*models.MatchReport, error) {
	cutoff := time.Now().Add(-s.staleTTL)
	reports, err := s.reportRepo.ListStale(ctx, nil, cutoff)
	if err != nil {
		s.logger.Error("failed to list stale reports", "error", err)
		return nil, ErrInternalStorage
	}
	return reports, nil
}

func (s *reportService) EscalateStale(ctx context.Context) (int, error) {
	stale, err := s.ListStale(ctx)
	if err != nil {
		return 0, err
	}
	for _, report := range stale {
		metrics.StaleReportsEscalatedTotal.Inc()
		s.auditor.Record(ctx, "match.report_stale", nil, fmt.Sprintf("match:%d", report.MatchID), map[string]interface{}{
			"slot":         report.Slot,
			"submitted_at": report.SubmittedAt,
		})
	}
	if len(stale) > 0 {
		s.logger.Warn("stale score reports awaiting resolution", "count", len(stale), "ttl", s.staleTTL)
	}
	return len(stale), nil
}
