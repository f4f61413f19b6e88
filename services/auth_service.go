package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

const minPasswordLength = 8

// RegisterInput creates a player account together with the competitor it
// controls. Admin accounts are provisioned out of band.
type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=64"`
	Handle      string `json:"handle" validate:"required,min=2,max=24,alphanum"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
}

type authService struct {
	userRepo       repositories.UserRepository
	competitorRepo repositories.CompetitorRepository
	auditor        audit.Recorder
	logger         *slog.Logger
}

func NewAuthService(userRepo repositories.UserRepository, competitorRepo repositories.CompetitorRepository, auditor audit.Recorder, logger *slog.Logger) AuthService {
	return &authService{
		userRepo:       userRepo,
		competitorRepo: competitorRepo,
		auditor:        auditor,
		logger:         logger,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	competitor := &models.Competitor{
		DisplayName: input.DisplayName,
		Handle:      strings.ToLower(input.Handle),
	}
	if err := s.competitorRepo.Create(ctx, competitor); err != nil {
		if errors.Is(err, repositories.ErrCompetitorHandleConflict) {
			return nil, ErrCompetitorHandleTaken
		}
		s.logger.Error("failed to create competitor during registration", "handle", input.Handle, "error", err)
		return nil, ErrInternalStorage
	}

	user := &models.User{
		Email:        strings.ToLower(input.Email),
		PasswordHash: string(hashedPassword),
		Role:         models.RolePlayer,
		CompetitorID: &competitor.ID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// The competitor has no matches yet, so it can be flagged away.
		if delErr := s.competitorRepo.SoftDelete(ctx, competitor.ID); delErr != nil {
			s.logger.Error("failed to clean up competitor after registration failure", "competitor_id", competitor.ID, "error", delErr)
		}
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserEmailConflict
		}
		s.logger.Error("failed to create user", "email", user.Email, "error", err)
		return nil, ErrInternalStorage
	}

	user.PasswordHash = ""
	s.auditor.Record(ctx, "auth.registered", intPtr(user.ID), fmt.Sprintf("competitor:%d", competitor.ID), nil)
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(input.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to find user by email", "error", err)
		return nil, ErrInternalStorage
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}
