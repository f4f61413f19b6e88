package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

type fakeUserRepo struct {
	users  map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*models.User{}, nextID: 1}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if user.CompetitorID != nil && existing.CompetitorID != nil && *existing.CompetitorID == *user.CompetitorID {
			return repositories.ErrUserCompetitorConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func newAuthService(h *harness, userRepo *fakeUserRepo) AuthService {
	return NewAuthService(userRepo, h.competitorRepo, audit.NewNoop(), testLogger())
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Email:       "racer@example.com",
		Password:    "hunter2hunter2",
		DisplayName: "Racer One",
		Handle:      "RacerOne",
	}
}

func TestRegisterCreatesPlayerWithLinkedCompetitor(t *testing.T) {
	h := newHarness(t)
	users := newFakeUserRepo()
	svc := newAuthService(h, users)

	user, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	assert.Equal(t, models.RolePlayer, user.Role)
	assert.Equal(t, "racer@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	require.NotNil(t, user.CompetitorID)

	competitor, err := h.competitorRepo.GetByID(context.Background(), *user.CompetitorID)
	require.NoError(t, err)
	assert.Equal(t, "racerone", competitor.Handle)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	h := newHarness(t)
	svc := newAuthService(h, newFakeUserRepo())

	input := validRegisterInput()
	input.Password = "short"
	_, err := svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterConflicts(t *testing.T) {
	h := newHarness(t)
	users := newFakeUserRepo()
	svc := newAuthService(h, users)

	_, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	// Same handle, different email.
	input := validRegisterInput()
	input.Email = "other@example.com"
	_, err = svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrCompetitorHandleTaken)

	// Same email, different handle: the orphaned competitor is flagged away.
	input = validRegisterInput()
	input.Handle = "SecondHandle"
	_, err = svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrUserEmailConflict)

	competitors, err := h.competitorRepo.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, competitors, 1)
}

func TestLoginVerifiesPassword(t *testing.T) {
	h := newHarness(t)
	users := newFakeUserRepo()
	svc := newAuthService(h, users)

	_, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	user, err := svc.Login(context.Background(), LoginInput{Email: "Racer@Example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.Login(context.Background(), LoginInput{Email: "racer@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "hunter2hunter2"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
