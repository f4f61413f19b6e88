package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

type TournamentUpsertInput struct {
	Name      string                  `json:"name" validate:"required,min=3,max=128"`
	Season    *string                 `json:"season,omitempty" validate:"omitempty,max=32"`
	Format    models.TournamentFormat `json:"format" validate:"required,oneof=rounds points positions"`
	RegDate   time.Time               `json:"reg_date" validate:"required"`
	StartDate time.Time               `json:"start_date" validate:"required"`
	EndDate   time.Time               `json:"end_date" validate:"required"`
}

type TournamentService interface {
	Create(ctx context.Context, input TournamentUpsertInput, organizerID int) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context) ([]*models.Tournament, error)
	Update(ctx context.Context, id int, input TournamentUpsertInput, actorUserID int) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, actorUserID int) (*models.Tournament, error)
	Cancel(ctx context.Context, id, actorUserID int) error
	// AutoUpdateStatusesByDates advances date-driven transitions
	// (soon→registration, registration→qualification). Run by the
	// scheduler; finals and completion are result-driven, never date-driven.
	AutoUpdateStatusesByDates(ctx context.Context) error
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	auditor        audit.Recorder
	logger         *slog.Logger
}

func NewTournamentService(tournamentRepo repositories.TournamentRepository, auditor audit.Recorder, logger *slog.Logger) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		auditor:        auditor,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input TournamentUpsertInput, organizerID int) (*models.Tournament, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateTournamentDates(input.RegDate, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:        input.Name,
		Season:      input.Season,
		Format:      input.Format,
		Status:      models.StatusSoon,
		OrganizerID: organizerID,
		RegDate:     input.RegDate,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		s.logger.Error("failed to create tournament", "name", input.Name, "error", err)
		return nil, ErrInternalStorage
	}
	s.auditor.Record(ctx, "tournament.created", intPtr(organizerID), fmt.Sprintf("tournament:%d", tournament.ID), nil)
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		s.logger.Error("failed to load tournament", "tournament_id", id, "error", err)
		return nil, ErrInternalStorage
	}
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list tournaments", "error", err)
		return nil, ErrInternalStorage
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, id int, input TournamentUpsertInput, actorUserID int) (*models.Tournament, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateTournamentDates(input.RegDate, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.StatusCompleted || current.Status == models.StatusCanceled {
		return nil, fmt.Errorf("%w: tournament is %s", ErrForbiddenOperation, current.Status)
	}

	current.Name = input.Name
	current.Season = input.Season
	current.Format = input.Format
	current.RegDate = input.RegDate
	current.StartDate = input.StartDate
	current.EndDate = input.EndDate

	if err := s.tournamentRepo.Update(ctx, current); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return nil, ErrTournamentNotFound
		case errors.Is(err, repositories.ErrTournamentNameConflict):
			return nil, ErrTournamentNameConflict
		}
		s.logger.Error("failed to update tournament", "tournament_id", id, "error", err)
		return nil, ErrInternalStorage
	}
	s.auditor.Record(ctx, "tournament.updated", intPtr(actorUserID), fmt.Sprintf("tournament:%d", id), nil)
	return current, nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, actorUserID int) (*models.Tournament, error) {
	switch status {
	case models.StatusSoon, models.StatusRegistration, models.StatusQualification,
		models.StatusFinals, models.StatusCompleted, models.StatusCanceled:
	default:
		return nil, ErrTournamentInvalidStatus
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isValidStatusTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, current.Status, status)
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		s.logger.Error("failed to update tournament status", "tournament_id", id, "error", err)
		return nil, ErrInternalStorage
	}
	s.auditor.Record(ctx, "tournament.status_changed", intPtr(actorUserID), fmt.Sprintf("tournament:%d", id), map[string]interface{}{
		"from": current.Status,
		"to":   status,
	})
	current.Status = status
	return current, nil
}

func (s *tournamentService) Cancel(ctx context.Context, id, actorUserID int) error {
	_, err := s.UpdateStatus(ctx, id, models.StatusCanceled, actorUserID)
	return err
}

func (s *tournamentService) AutoUpdateStatusesByDates(ctx context.Context) error {
	// Later lifecycle stage first: a tournament whose reg_date and
	// start_date have both passed advances one step per sweep.
	transitions := []struct {
		from       models.TournamentStatus
		to         models.TournamentStatus
		dateColumn string
	}{
		{models.StatusRegistration, models.StatusQualification, "start_date"},
		{models.StatusSoon, models.StatusRegistration, "reg_date"},
	}

	for _, tr := range transitions {
		due, err := s.tournamentRepo.ListDueForStatus(ctx, tr.from, tr.dateColumn)
		if err != nil {
			return fmt.Errorf("failed to list tournaments due for %s: %w", tr.to, err)
		}
		for _, tournament := range due {
			if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, tr.to); err != nil {
				s.logger.Error("failed auto status transition", "tournament_id", tournament.ID, "to", tr.to, "error", err)
				continue
			}
			s.logger.Info("tournament status advanced by schedule", "tournament_id", tournament.ID, "from", tr.from, "to", tr.to)
			s.auditor.Record(ctx, "tournament.status_auto_advanced", nil, fmt.Sprintf("tournament:%d", tournament.ID), map[string]interface{}{
				"from": tr.from,
				"to":   tr.to,
			})
		}
	}
	return nil
}
