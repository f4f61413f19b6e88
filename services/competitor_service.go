package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
	"github.com/Dosada05/smk-league/storage"
)

type CompetitorUpsertInput struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=64"`
	Handle      string `json:"handle" validate:"required,min=2,max=24,alphanum"`
}

type CompetitorService interface {
	Create(ctx context.Context, input CompetitorUpsertInput, actorUserID int) (*models.Competitor, error)
	GetByID(ctx context.Context, id int) (*models.Competitor, error)
	List(ctx context.Context, includeDeleted bool) ([]*models.Competitor, error)
	Update(ctx context.Context, id int, input CompetitorUpsertInput, actorUserID int) (*models.Competitor, error)
	Delete(ctx context.Context, id, actorUserID int) error
	// UploadAvatar stores the image and replaces the previous key, removing
	// the superseded object from the bucket.
	UploadAvatar(ctx context.Context, id int, contentType string, body io.Reader, actorUserID int) (*models.Competitor, error)
}

type competitorService struct {
	competitorRepo repositories.CompetitorRepository
	uploader       storage.FileUploader
	auditor        audit.Recorder
	logger         *slog.Logger
}

func NewCompetitorService(competitorRepo repositories.CompetitorRepository, uploader storage.FileUploader, auditor audit.Recorder, logger *slog.Logger) CompetitorService {
	return &competitorService{
		competitorRepo: competitorRepo,
		uploader:       uploader,
		auditor:        auditor,
		logger:         logger,
	}
}

func (s *competitorService) Create(ctx context.Context, input CompetitorUpsertInput, actorUserID int) (*models.Competitor, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	competitor := &models.Competitor{
		DisplayName: input.DisplayName,
		Handle:      strings.ToLower(input.Handle),
	}
	if err := s.competitorRepo.Create(ctx, competitor); err != nil {
		if errors.Is(err, repositories.ErrCompetitorHandleConflict) {
			return nil, ErrCompetitorHandleTaken
		}
		s.logger.Error("failed to create competitor", "handle", input.Handle, "error", err)
		return nil, ErrInternalStorage
	}
	s.auditor.Record(ctx, "competitor.created", intPtr(actorUserID), fmt.Sprintf("competitor:%d", competitor.ID), nil)
	return competitor, nil
}

func (s *competitorService) GetByID(ctx context.Context, id int) (*models.Competitor, error) {
	competitor, err := s.competitorRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return nil, ErrCompetitorNotFound
		}
		s.logger.Error("failed to load competitor", "competitor_id", id, "error", err)
		return nil, ErrInternalStorage
	}
	s.populateAvatarURL(competitor)
	return competitor, nil
}

func (s *competitorService) List(ctx context.Context, includeDeleted bool) ([]*models.Competitor, error) {
	competitors, err := s.competitorRepo.List(ctx, includeDeleted)
	if err != nil {
		s.logger.Error("failed to list competitors", "error", err)
		return nil, ErrInternalStorage
	}
	for _, c := range competitors {
		s.populateAvatarURL(c)
	}
	return competitors, nil
}

func (s *competitorService) Update(ctx context.Context, id int, input CompetitorUpsertInput, actorUserID int) (*models.Competitor, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	competitor := &models.Competitor{
		ID:          id,
		DisplayName: input.DisplayName,
		Handle:      strings.ToLower(input.Handle),
	}
	if err := s.competitorRepo.Update(ctx, competitor); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCompetitorNotFound):
			return nil, ErrCompetitorNotFound
		case errors.Is(err, repositories.ErrCompetitorHandleConflict):
			return nil, ErrCompetitorHandleTaken
		}
		s.logger.Error("failed to update competitor", "competitor_id", id, "error", err)
		return nil, ErrInternalStorage
	}
	s.auditor.Record(ctx, "competitor.updated", intPtr(actorUserID), fmt.Sprintf("competitor:%d", id), nil)
	return s.GetByID(ctx, id)
}

func (s *competitorService) Delete(ctx context.Context, id, actorUserID int) error {
	if err := s.competitorRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return ErrCompetitorNotFound
		}
		s.logger.Error("failed to delete competitor", "competitor_id", id, "error", err)
		return ErrInternalStorage
	}
	s.auditor.Record(ctx, "competitor.deleted", intPtr(actorUserID), fmt.Sprintf("competitor:%d", id), nil)
	return nil
}

func (s *competitorService) UploadAvatar(ctx context.Context, id int, contentType string, body io.Reader, actorUserID int) (*models.Competitor, error) {
	competitor, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	extension, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, &ValidationError{Field: "avatar", Message: err.Error()}
	}

	key := fmt.Sprintf("avatars/competitor_%d%s", id, extension)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		s.logger.Error("failed to upload avatar", "competitor_id", id, "error", err)
		return nil, fmt.Errorf("avatar upload failed: %w", err)
	}

	previousKey := competitor.AvatarKey
	if err := s.competitorRepo.UpdateAvatarKey(ctx, id, &key); err != nil {
		s.logger.Error("failed to persist avatar key", "competitor_id", id, "error", err)
		return nil, ErrInternalStorage
	}

	if previousKey != nil && *previousKey != key {
		if err := s.uploader.Delete(ctx, *previousKey); err != nil {
			s.logger.Warn("failed to delete replaced avatar object", "key", *previousKey, "error", err)
		}
	}

	s.auditor.Record(ctx, "competitor.avatar_uploaded", intPtr(actorUserID), fmt.Sprintf("competitor:%d", id), map[string]interface{}{"key": key})
	return s.GetByID(ctx, id)
}

func (s *competitorService) populateAvatarURL(competitor *models.Competitor) {
	if competitor == nil || competitor.AvatarKey == nil || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*competitor.AvatarKey)
	competitor.AvatarURL = &url
}
