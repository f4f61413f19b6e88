package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/smk-league/models"
)

func playerReport(matchID, slot, competitorID, score1, score2 int) SubmitReportInput {
	return SubmitReportInput{
		MatchID:           matchID,
		Slot:              slot,
		Score1:            score1,
		Score2:            score2,
		ActorUserID:       competitorID,
		ActorRole:         models.RolePlayer,
		ActorCompetitorID: intPtr(competitorID),
	}
}

func TestSubmitFirstReportIsPending(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	status, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)

	assert.Equal(t, models.ReportStateOneReported, status.State)
	assert.Len(t, status.Reports, 1)
	assert.False(t, status.Match.Completed)
}

func TestSubmitAgreeingReportsConfirmMatch(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)

	status, err := h.reports.Submit(context.Background(), playerReport(match.ID, 2, 22, 3, 1))
	require.NoError(t, err)

	assert.Equal(t, models.ReportStateConfirmed, status.State)
	assert.True(t, status.Match.Completed)
	require.NotNil(t, status.Match.WinnerID)
	assert.Equal(t, 11, *status.Match.WinnerID)
	assert.Empty(t, status.Reports)

	// The pending pair is gone once the match is authoritative.
	remaining, err := h.reportRepo.ListByMatch(context.Background(), nil, match.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Confirmation drove the standings recompute.
	record, err := h.recordRepo.GetByTournamentAndCompetitor(context.Background(), nil, tournament.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Wins)
}

func TestSubmitDisagreeingReportsMismatch(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)

	status, err := h.reports.Submit(context.Background(), playerReport(match.ID, 2, 22, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, models.ReportStateMismatched, status.State)
	assert.False(t, status.Match.Completed)
	assert.Len(t, status.Reports, 2)
}

func TestResubmitOverwritesOwnClaim(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)
	_, err = h.reports.Submit(context.Background(), playerReport(match.ID, 2, 22, 2, 3))
	require.NoError(t, err)

	// Slot 2 corrects its claim to agree; the mismatch resolves itself.
	status, err := h.reports.Submit(context.Background(), playerReport(match.ID, 2, 22, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateConfirmed, status.State)
	assert.True(t, status.Match.Completed)
}

func TestSubmitNonOwnerRejected(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	// Competitor 22 tries to report for slot 1.
	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 22, 3, 1))
	assert.ErrorIs(t, err, ErrNotSlotOwner)

	// Admins may report any slot.
	admin := playerReport(match.ID, 1, 0, 3, 1)
	admin.ActorRole = models.RoleAdmin
	admin.ActorCompetitorID = nil
	status, err := h.reports.Submit(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateOneReported, status.State)
}

func TestSubmitAfterCompletionIdempotentOnMatchingScores(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)
	_, err = h.reports.Submit(context.Background(), playerReport(match.ID, 2, 22, 3, 1))
	require.NoError(t, err)

	// A late duplicate claiming the recorded scores succeeds in effect.
	status, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateConfirmed, status.State)

	// A late claim with different scores is a real conflict.
	_, err = h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 2, 1))
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)
}

func TestAdminResolvesMismatch(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)
	_, err = h.reports.Submit(context.Background(), playerReport(match.ID, 2, 22, 2, 3))
	require.NoError(t, err)

	updated, err := h.matches.ResolveMismatch(context.Background(), SubmitResultInput{
		MatchID: match.ID, Score1: 3, Score2: 1, Version: 1,
	})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	// Resolution clears the disputed pair.
	remaining, err := h.reportRepo.ListByMatch(context.Background(), nil, match.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSubmitRejectsUnfilledMatch(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusFinals)
	h.seedFinalsBracket(t, tournament.ID)
	semifinal := h.finalsMatch(t, tournament.ID, 5)

	_, err := h.reports.Submit(context.Background(), playerReport(semifinal.ID, 1, 101, 2, 0))
	assert.ErrorIs(t, err, ErrMatchSlotsNotFilled)
}

func TestGetStatusDerivesState(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	status, err := h.reports.GetStatus(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateNoReports, status.State)

	_, err = h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)

	status, err = h.reports.GetStatus(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateOneReported, status.State)

	_, err = h.reports.GetStatus(context.Background(), 404)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestEscalateStaleCountsOldReports(t *testing.T) {
	h := newHarness(t)
	tournament := h.seedTournament(t, models.FormatRounds, models.StatusQualification)
	match := h.seedQualificationMatch(t, tournament.ID, 1, 11, 22)

	_, err := h.reports.Submit(context.Background(), playerReport(match.ID, 1, 11, 3, 1))
	require.NoError(t, err)

	count, err := h.reports.EscalateStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	// Age the report past the escalation TTL.
	h.reportRepo.reports[match.ID][1].SubmittedAt = time.Now().Add(-48 * time.Hour)

	count, err = h.reports.EscalateStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stale, err := h.reports.ListStale(context.Background())
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, match.ID, stale[0].MatchID)
}
