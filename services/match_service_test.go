package services

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/brackets"
	"github.com/Dosada05/smk-league/cache"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

type harness struct {
	matchRepo      *fakeMatchRepo
	tournamentRepo *fakeTournamentRepo
	reportRepo     *fakeReportRepo
	recordRepo     *fakeRecordRepo
	competitorRepo *fakeCompetitorRepo
	standingsCache *cache.Standings

	standings StandingsService
	matches   MatchService
	reports   ReportService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		matchRepo:      newFakeMatchRepo(),
		tournamentRepo: newFakeTournamentRepo(),
		reportRepo:     newFakeReportRepo(),
		recordRepo:     newFakeRecordRepo(),
		competitorRepo: newFakeCompetitorRepo(),
		standingsCache: cache.NewStandings(time.Minute),
	}
	h.standings = NewStandingsService(h.matchRepo, h.recordRepo, h.competitorRepo, h.tournamentRepo, h.standingsCache, testLogger())
	h.matches = NewMatchService(h.matchRepo, h.tournamentRepo, h.reportRepo, h.standings, fakeTxRunner{}, audit.NewNoop(), testLogger())
	h.reports = NewReportService(h.matchRepo, h.reportRepo, h.matches, fakeTxRunner{}, audit.NewNoop(), testLogger(), 24*time.Hour)
	return h
}

func (h *harness) seedTournament(t *testing.T, format models.TournamentFormat, status models.TournamentStatus) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		Name:        "Spring Cup",
		Format:      format,
		Status:      status,
		OrganizerID: 1,
		RegDate:     time.Now().Add(-72 * time.Hour),
		StartDate:   time.Now().Add(-48 * time.Hour),
		EndDate:     time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, h.tournamentRepo.Create(context.Background(), tournament))
	return tournament
}

func (h *harness) seedQualificationMatch(t *testing.T, tournamentID, seq, competitor1, competitor2 int) *models.Match {
	t.Helper()
	h.competitorRepo.add(competitor1, "racer-a")
	h.competitorRepo.add(competitor2, "racer-b")
	match := &models.Match{
		TournamentID: tournamentID,
		Seq:          seq,
		Stage:        models.StageQualification,
		Slot1ID:      intPtr(competitor1),
		Slot2ID:      intPtr(competitor2),
	}
	require.NoError(t, h.matchRepo.Create(context.Background(), nil, match))
	return match
}

// seedFinalsBracket creates the full 17-match graph with seeds mapped to
// competitor ids 101..108 (seed n -> 100+n).
func (h *harness) seedFinalsBracket(t *testing.T, tournamentID int) {
	t.Helper()
	topology, err := brackets.GenerateDoubleElimination(brackets.DoubleEliminationSize)
	require.NoError(t, err)

	for seed := 1; seed <= 8; seed++ {
		h.competitorRepo.add(100+seed, "seed-"+string(rune('a'+seed-1)))
	}
	for _, entry := range topology {
		match := &models.Match{
			TournamentID: tournamentID,
			Seq:          entry.Seq,
			Stage:        models.StageFinals,
		}
		if entry.Seed1 != 0 {
			match.Slot1ID = intPtr(100 + entry.Seed1)
		}
		if entry.Seed2 != 0 {
			match.Slot2ID = intPtr(100 + entry.Seed2)
		}
		require.NoError(t, h.matchRepo.Create(context.Background(), nil, match))
	}
}

func (h *harness) finalsMatch(t *testing.T, tournamentID, seq int) *models.Match {
	t.Helper()
	match, err := h.matchRepo.GetByStageSeq(context.Background(), nil, tournamentID, models.StageFinals, seq)
	require.NoError(t, err)
	return match
}

func TestSubmitResultCompletesQualificationMatch(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	updated, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID,
		Score1:  3,
		Score2:  1,
		Version: 1,
	})
	require.NoError(t, err)

	assert.True(t, updated.Completed)
	assert.Equal(t, 2, updated.Version)
	require.NotNil(t, updated.WinnerID)
	assert.Equal(t, 11, *updated.WinnerID)

	// Both sides got a standings replacement row.
	winner, err := h.recordRepo.GetByTournamentAndCompetitor(context.Background(), nil, tournament.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 2, winner.Points)

	loser, err := h.recordRepo.GetByTournamentAndCompetitor(context.Background(), nil, tournament.ID, 22)
	require.NoError(t, err)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, 0, loser.Points)
}

func TestSubmitResultStaleVersionIsConflict(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 3, Score2: 1, Version: 1,
	})
	require.NoError(t, err)

	// A second writer retrying with the version it observed before the first
	// write must learn about the race, not get "already completed".
	_, err = h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 1, Score2: 3, Version: 1,
	})

	var conflict *VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, match.ID, conflict.MatchID)
	assert.Equal(t, 2, conflict.CurrentVersion)
}

func TestSubmitResultCurrentVersionOnCompletedMatch(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 3, Score2: 1, Version: 1,
	})
	require.NoError(t, err)

	_, err = h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 1, Score2: 3, Version: 2,
	})
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)
}

func TestSubmitResultTieRejectedInFinals(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusFinals)
	h.seedFinalsBracket(t, tournament.ID)
	match := h.finalsMatch(t, tournament.ID, 1)

	_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 2, Score2: 2, Version: match.Version,
	})
	assert.ErrorIs(t, err, ErrTieNotAllowedFinals)

	refreshed := h.finalsMatch(t, tournament.ID, 1)
	assert.False(t, refreshed.Completed)
}

func TestSubmitResultRejectsUnfilledSlots(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusFinals)
	h.seedFinalsBracket(t, tournament.ID)
	semifinal := h.finalsMatch(t, tournament.ID, 5)

	_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: semifinal.ID, Score1: 2, Score2: 0, Version: semifinal.Version,
	})
	assert.ErrorIs(t, err, ErrMatchSlotsNotFilled)
}

func TestSubmitResultAdvancesWinnerAndLoser(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusFinals)
	h.seedFinalsBracket(t, tournament.ID)
	quarterfinal := h.finalsMatch(t, tournament.ID, 1) // 101 vs 108

	_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: quarterfinal.ID, Score1: 2, Score2: 0, Version: quarterfinal.Version,
	})
	require.NoError(t, err)

	semifinal := h.finalsMatch(t, tournament.ID, 5)
	require.NotNil(t, semifinal.Slot1ID)
	assert.Equal(t, 101, *semifinal.Slot1ID)
	assert.Nil(t, semifinal.Slot2ID)

	losersRound1 := h.finalsMatch(t, tournament.ID, 8)
	require.NotNil(t, losersRound1.Slot1ID)
	assert.Equal(t, 108, *losersRound1.Slot1ID)
}

func TestSubmitResultRetriesTransientFailure(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	h.matchRepo.transientFailures = 1
	h.matchRepo.transientErr = driver.ErrBadConn

	updated, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 3, Score2: 1, Version: 1,
	})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, 2, updated.Version)
}

func TestSubmitResultUnknownMatch(t *testing.T) {
	h := newHarness(t)

	_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
		MatchID: 404, Score1: 1, Score2: 0, Version: 1,
	})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

// TestFinalsPlaythroughCrownsChampion drives a full bracket with the better
// seed always winning: walkovers in losers round 3 must auto-complete, the
// reset must stay untouched, and seed 1 ends as champion.
func TestFinalsPlaythroughCrownsChampion(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusFinals)
	h.seedFinalsBracket(t, tournament.ID)

	for seq := 1; seq <= brackets.GrandFinalSeq; seq++ {
		match := h.finalsMatch(t, tournament.ID, seq)
		if match.Completed {
			continue // walkover already resolved by the cascade
		}
		require.NotNil(t, match.Slot1ID, "seq %d slot1 empty at play time", seq)
		require.NotNil(t, match.Slot2ID, "seq %d slot2 empty at play time", seq)

		score1, score2 := 2, 1
		if *match.Slot2ID < *match.Slot1ID {
			score1, score2 = 1, 2
		}
		_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
			MatchID: match.ID, Score1: score1, Score2: score2, Version: match.Version,
		})
		require.NoError(t, err, "seq %d", seq)
	}

	// Walkover matches completed without scores, winner recorded.
	for _, seq := range []int{12, 13} {
		walkover := h.finalsMatch(t, tournament.ID, seq)
		assert.True(t, walkover.Completed, "seq %d", seq)
		assert.Nil(t, walkover.Score1, "seq %d", seq)
		require.NotNil(t, walkover.WinnerID, "seq %d", seq)
	}

	// Winners-side champion: no reset played.
	reset := h.finalsMatch(t, tournament.ID, brackets.GrandFinalResetSeq)
	assert.False(t, reset.Completed)
	assert.Nil(t, reset.Slot1ID)

	final, err := h.tournamentRepo.GetByID(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, final.ChampionID)
	assert.Equal(t, 101, *final.ChampionID)
	assert.Equal(t, models.StatusCompleted, final.Status)
}

// TestFinalsResetPlayedWhenLosersSideTakesGrandFinal forces the bracket
// reset: the losers-side finalist wins the grand final, then the reset
// decides the champion.
func TestFinalsResetPlayedWhenLosersSideTakesGrandFinal(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusFinals)
	h.seedFinalsBracket(t, tournament.ID)

	for seq := 1; seq <= brackets.GrandFinalResetSeq; seq++ {
		match := h.finalsMatch(t, tournament.ID, seq)
		if match.Completed {
			continue
		}
		if match.Slot1ID == nil || match.Slot2ID == nil {
			continue
		}

		// Better seed wins everywhere except the grand final, where the
		// losers-side arrival (slot 2) takes it and forces the reset.
		score1, score2 := 2, 1
		if seq == brackets.GrandFinalSeq || *match.Slot2ID < *match.Slot1ID {
			score1, score2 = 1, 2
		}
		if seq == brackets.GrandFinalResetSeq {
			// Winners-side survivor reclaims the title in the reset.
			score1, score2 = 2, 1
		}
		_, err := h.matches.SubmitResult(context.Background(), SubmitResultInput{
			MatchID: match.ID, Score1: score1, Score2: score2, Version: match.Version,
		})
		require.NoError(t, err, "seq %d", seq)
	}

	reset := h.finalsMatch(t, tournament.ID, brackets.GrandFinalResetSeq)
	assert.True(t, reset.Completed)

	final, err := h.tournamentRepo.GetByID(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, final.ChampionID)
	assert.Equal(t, 101, *final.ChampionID)
}

func TestListByTournamentFilters(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)
	h.seedQualificationMatch(t, tournament.ID, 2, 11, 33)

	stage := models.StageQualification
	completed := true
	matches, err := h.matches.ListByTournament(context.Background(), tournament.ID, repositories.MatchFilter{Stage: &stage, Completed: &completed})
	require.NoError(t, err)
	assert.Empty(t, matches)

	completed = false
	matches, err = h.matches.ListByTournament(context.Background(), tournament.ID, repositories.MatchFilter{Stage: &stage, Completed: &completed})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	_, err = h.matches.ListByTournament(context.Background(), 404, repositories.MatchFilter{})
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
