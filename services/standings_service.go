package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/smk-league/cache"
	"github.com/Dosada05/smk-league/metrics"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

// StandingsRecomputer is the aggregator hook the match lifecycle drives
// after completing a qualification match.
type StandingsRecomputer interface {
	// Recompute replays ALL of the competitor's completed qualification
	// matches and writes the aggregate as a full replacement. Never applied
	// as an increment: the record is a cache over match history.
	Recompute(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, competitorID int) error
}

type StandingsService interface {
	StandingsRecomputer
	// List returns the ranked qualification table, served through the TTL
	// cache, with competitor details attached.
	List(ctx context.Context, tournamentID int) ([]*models.QualificationRecord, error)
}

type standingsService struct {
	matchRepo      repositories.MatchRepository
	recordRepo     repositories.QualificationRecordRepository
	competitorRepo repositories.CompetitorRepository
	tournamentRepo repositories.TournamentRepository
	standingsCache *cache.Standings
	logger         *slog.Logger
}

func NewStandingsService(
	matchRepo repositories.MatchRepository,
	recordRepo repositories.QualificationRecordRepository,
	competitorRepo repositories.CompetitorRepository,
	tournamentRepo repositories.TournamentRepository,
	standingsCache *cache.Standings,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		matchRepo:      matchRepo,
		recordRepo:     recordRepo,
		competitorRepo: competitorRepo,
		tournamentRepo: tournamentRepo,
		standingsCache: standingsCache,
		logger:         logger,
	}
}

func (s *standingsService) Recompute(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, competitorID int) error {
	matches, err := s.matchRepo.ListCompletedByCompetitor(ctx, exec, tournament.ID, competitorID, models.StageQualification)
	if err != nil {
		return err
	}

	record := &models.QualificationRecord{
		TournamentID: tournament.ID,
		CompetitorID: competitorID,
	}
	for _, match := range matches {
		if match.Score1 == nil || match.Score2 == nil {
			continue
		}
		ownScore, oppScore := *match.Score1, *match.Score2
		if match.CompetitorSlot(competitorID) == 2 {
			ownScore, oppScore = oppScore, ownScore
		}

		record.Played++
		switch classifyScores(tournament.Format, ownScore, oppScore) {
		case outcomeWin:
			record.Wins++
		case outcomeTie:
			record.Ties++
		case outcomeLoss:
			record.Losses++
		}
		record.Diff += secondaryMetric(tournament.Format, ownScore, oppScore)
	}
	record.Points = record.Wins*2 + record.Ties

	if err := s.recordRepo.Replace(ctx, exec, record); err != nil {
		return err
	}
	metrics.StandingsRecomputesTotal.Inc()
	s.standingsCache.Invalidate(tournament.ID)
	return nil
}

func (s *standingsService) List(ctx context.Context, tournamentID int) ([]*models.QualificationRecord, error) {
	if cached, ok := s.standingsCache.Get(tournamentID); ok {
		return cached, nil
	}

	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		s.logger.Error("failed to load tournament for standings", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}

	records, err := s.recordRepo.ListByTournament(ctx, nil, tournamentID, true)
	if err != nil {
		s.logger.Error("failed to list standings", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}

	if err := s.attachCompetitors(ctx, records); err != nil {
		s.logger.Error("failed to attach competitors to standings", "tournament_id", tournamentID, "error", err)
		return nil, ErrInternalStorage
	}

	s.standingsCache.Set(tournamentID, records)
	return records, nil
}

func (s *standingsService) attachCompetitors(ctx context.Context, records []*models.QualificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.CompetitorID)
	}
	competitors, err := s.competitorRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int]*models.Competitor, len(competitors))
	for _, c := range competitors {
		byID[c.ID] = c
	}
	for _, rec := range records {
		rec.Competitor = byID[rec.CompetitorID]
	}
	return nil
}
