package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/brackets"
	"github.com/Dosada05/smk-league/metrics"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

// BracketView groups a tournament's finals matches by bracket side, with
// competitor details attached, for read-only rendering.
type BracketView struct {
	TournamentID int             `json:"tournament_id"`
	Winners      []*models.Match `json:"winners"`
	Losers       []*models.Match `json:"losers"`
	GrandFinal   []*models.Match `json:"grand_final"`
}

type BracketService interface {
	// GenerateQualification persists the all-pairs qualification schedule
	// for the given competitors.
	GenerateQualification(ctx context.Context, tournamentID int, competitorIDs []int, actorUserID int) ([]*models.Match, error)
	// GenerateFinals seeds the double-elimination graph from the top 8 of
	// the qualification standings and moves the tournament to finals.
	GenerateFinals(ctx context.Context, tournamentID, actorUserID int) ([]*models.Match, error)
	GetBracketView(ctx context.Context, tournamentID int) (*BracketView, error)
}

type bracketService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	recordRepo     repositories.QualificationRecordRepository
	competitorRepo repositories.CompetitorRepository
	txRunner       TransactionRunner
	auditor        audit.Recorder
	logger         *slog.Logger
}

func NewBracketService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	recordRepo repositories.QualificationRecordRepository,
	competitorRepo repositories.CompetitorRepository,
	txRunner TransactionRunner,
	auditor audit.Recorder,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		recordRepo:     recordRepo,
		competitorRepo: competitorRepo,
		txRunner:       txRunner,
		auditor:        auditor,
		logger:         logger,
	}
}

func (s *bracketService) GenerateQualification(ctx context.Context, tournamentID int, competitorIDs []int, actorUserID int) ([]*models.Match, error) {
	pairings, err := brackets.GenerateRoundRobin(competitorIDs)
	if err != nil {
		return nil, &ValidationError{Field: "competitor_ids", Message: err.Error()}
	}

	var created []*models.Match

	err = s.txRunner.InTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status != models.StatusQualification {
			return ErrTournamentNotInQualification
		}

		stage := models.StageQualification
		existing, err := s.matchRepo.ListByTournament(ctx, exec, tournamentID, repositories.MatchFilter{Stage: &stage})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: qualification schedule already exists", ErrBracketAlreadyGenerated)
		}

		for _, pairing := range pairings {
			match := &models.Match{
				TournamentID: tournamentID,
				Seq:          pairing.Seq,
				Stage:        models.StageQualification,
				Slot1ID:      intPtr(pairing.Competitor1ID),
				Slot2ID:      intPtr(pairing.Competitor2ID),
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return err
			}
			created = append(created, match)
		}

		// Seed a zeroed standings row per competitor so the table is
		// visible before the first result. Reset first, so the rows
		// mirror the seeded competitor list exactly.
		if err := s.recordRepo.DeleteByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		records := make([]*models.QualificationRecord, 0, len(competitorIDs))
		for _, competitorID := range competitorIDs {
			records = append(records, &models.QualificationRecord{
				TournamentID: tournamentID,
				CompetitorID: competitorID,
			})
		}
		return s.recordRepo.BatchCreate(ctx, exec, records)
	})
	if err != nil {
		return nil, s.classifyGenerateError(err, tournamentID)
	}

	s.auditor.Record(ctx, "bracket.qualification_generated", intPtr(actorUserID), fmt.Sprintf("tournament:%d", tournamentID), map[string]interface{}{
		"matches":     len(created),
		"competitors": len(competitorIDs),
	})
	return created, nil
}

func (s *bracketService) GenerateFinals(ctx context.Context, tournamentID, actorUserID int) ([]*models.Match, error) {
	topology, err := brackets.GenerateDoubleElimination(brackets.DoubleEliminationSize)
	if err != nil {
		return nil, err
	}

	var created []*models.Match

	err = s.txRunner.InTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status != models.StatusQualification {
			return ErrTournamentNotReadyForFinals
		}

		stage := models.StageFinals
		existing, err := s.matchRepo.ListByTournament(ctx, exec, tournamentID, repositories.MatchFilter{Stage: &stage})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrBracketAlreadyGenerated
		}

		records, err := s.recordRepo.ListByTournament(ctx, exec, tournamentID, true)
		if err != nil {
			return err
		}
		if len(records) < brackets.DoubleEliminationSize {
			return fmt.Errorf("%w: need %d qualified competitors, have %d",
				ErrTournamentNotReadyForFinals, brackets.DoubleEliminationSize, len(records))
		}

		// Seed N is the Nth row of the ranked qualification table. Finals
		// sequence numbers follow the graph's own 1..17 numbering; seq is
		// unique per (tournament, stage).
		seedToCompetitor := make(map[int]int, brackets.DoubleEliminationSize)
		for i := 0; i < brackets.DoubleEliminationSize; i++ {
			seedToCompetitor[i+1] = records[i].CompetitorID
		}

		for _, entry := range topology {
			round := entry.Round
			side := string(entry.Side)
			match := &models.Match{
				TournamentID: tournamentID,
				Seq:          entry.Seq,
				Stage:        models.StageFinals,
				Round:        &round,
				BracketSide:  &side,
			}
			if entry.Seed1 != 0 {
				match.Slot1ID = intPtr(seedToCompetitor[entry.Seed1])
			}
			if entry.Seed2 != 0 {
				match.Slot2ID = intPtr(seedToCompetitor[entry.Seed2])
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return err
			}
			created = append(created, match)
		}

		return s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusFinals)
	})
	if err != nil {
		return nil, s.classifyGenerateError(err, tournamentID)
	}

	metrics.BracketGenerationsTotal.Inc()
	s.auditor.Record(ctx, "bracket.finals_generated", intPtr(actorUserID), fmt.Sprintf("tournament:%d", tournamentID), map[string]interface{}{
		"matches": len(created),
	})
	return created, nil
}

func (s *bracketService) classifyGenerateError(err error, tournamentID int) error {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation
	}
	switch {
	case errors.Is(err, ErrTournamentNotFound),
		errors.Is(err, ErrTournamentNotInQualification),
		errors.Is(err, ErrTournamentNotReadyForFinals),
		errors.Is(err, ErrBracketAlreadyGenerated):
		return err
	}
	s.logger.Error("bracket generation failed", "tournament_id", tournamentID, "error", err)
	return ErrInternalStorage
}

func (s *bracketService) GetBracketView(ctx context.Context, tournamentID int) (*BracketView, error) {
	var (
		tournament *models.Tournament
		matches    []*models.Match
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(groupCtx, nil, tournamentID)
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	})
	group.Go(func() error {
		stage := models.StageFinals
		var err error
		matches, err = s.matchRepo.ListByTournament(groupCtx, nil, tournamentID, repositories.MatchFilter{Stage: &stage})
		return err
	})
	if err := group.Wait(); err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		s.logger.Error("failed to load bracket view", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}

	if err := s.attachCompetitors(ctx, matches); err != nil {
		s.logger.Error("failed to attach competitors to bracket", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}

	view := &BracketView{TournamentID: tournament.ID}
	for _, match := range matches {
		switch derefString(match.BracketSide) {
		case string(brackets.SideWinners):
			view.Winners = append(view.Winners, match)
		case string(brackets.SideLosers):
			view.Losers = append(view.Losers, match)
		case string(brackets.SideGrandFinal):
			view.GrandFinal = append(view.GrandFinal, match)
		}
	}
	return view, nil
}

func (s *bracketService) attachCompetitors(ctx context.Context, matches []*models.Match) error {
	idSet := make(map[int]struct{})
	for _, m := range matches {
		if m.Slot1ID != nil {
			idSet[*m.Slot1ID] = struct{}{}
		}
		if m.Slot2ID != nil {
			idSet[*m.Slot2ID] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return nil
	}
	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	competitors, err := s.competitorRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int]*models.Competitor, len(competitors))
	for _, c := range competitors {
		byID[c.ID] = c
	}
	for _, m := range matches {
		if m.Slot1ID != nil {
			m.Slot1 = byID[*m.Slot1ID]
		}
		if m.Slot2ID != nil {
			m.Slot2 = byID[*m.Slot2ID]
		}
	}
	return nil
}
