package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

// In-memory repository fakes. They honor the same contracts as the Postgres
// implementations: sentinel errors, version CAS semantics, and value copies
// so callers never share rows with the store.

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- matches ---

type fakeMatchRepo struct {
	matches map[int]*models.Match
	nextID  int

	// transientFailures injects that many transient errors into result
	// writes before letting them through.
	transientFailures int
	transientErr      error
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: map[int]*models.Match{}, nextID: 1}
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	for _, existing := range r.matches {
		if existing.TournamentID == match.TournamentID && existing.Stage == match.Stage && existing.Seq == match.Seq {
			return repositories.ErrMatchSeqConflict
		}
	}
	match.ID = r.nextID
	r.nextID++
	match.Version = 1
	match.CreatedAt = time.Now()
	match.UpdatedAt = match.CreatedAt
	r.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(match), nil
}

func (r *fakeMatchRepo) GetByStageSeq(_ context.Context, _ repositories.SQLExecutor, tournamentID int, stage models.MatchStage, seq int) (*models.Match, error) {
	for _, match := range r.matches {
		if match.TournamentID == tournamentID && match.Stage == stage && match.Seq == seq {
			return copyMatch(match), nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	out := []*models.Match{}
	for _, match := range r.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		if filter.Stage != nil && match.Stage != *filter.Stage {
			continue
		}
		if filter.Completed != nil && match.Completed != *filter.Completed {
			continue
		}
		out = append(out, copyMatch(match))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (r *fakeMatchRepo) ListCompletedByCompetitor(_ context.Context, _ repositories.SQLExecutor, tournamentID, competitorID int, stage models.MatchStage) ([]*models.Match, error) {
	out := []*models.Match{}
	for _, match := range r.matches {
		if match.TournamentID != tournamentID || match.Stage != stage || !match.Completed {
			continue
		}
		if match.CompetitorSlot(competitorID) == 0 {
			continue
		}
		out = append(out, copyMatch(match))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *fakeMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id, expectedVersion int, upd repositories.MatchResultUpdate) error {
	if r.transientFailures > 0 {
		r.transientFailures--
		return r.transientErr
	}
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Completed || match.Version != expectedVersion {
		return repositories.ErrMatchVersionConflict
	}
	match.Score1 = upd.Score1
	match.Score2 = upd.Score2
	match.Details = upd.Details
	match.WinnerID = upd.WinnerID
	match.Completed = upd.Completed
	match.Version++
	match.UpdatedAt = time.Now()
	return nil
}

func (r *fakeMatchRepo) UpdateSlots(_ context.Context, _ repositories.SQLExecutor, id, expectedVersion int, slot1ID, slot2ID *int) error {
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Completed || match.Version != expectedVersion {
		return repositories.ErrMatchVersionConflict
	}
	match.Slot1ID = slot1ID
	match.Slot2ID = slot2ID
	match.Version++
	match.UpdatedAt = time.Now()
	return nil
}

// --- tournaments ---

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: map[int]*models.Tournament{}, nextID: 1}
}

func copyTournament(t *models.Tournament) *models.Tournament {
	c := *t
	return &c
}

func (r *fakeTournamentRepo) Create(_ context.Context, tournament *models.Tournament) error {
	tournament.ID = r.nextID
	r.nextID++
	tournament.CreatedAt = time.Now()
	r.tournaments[tournament.ID] = copyTournament(tournament)
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	tournament, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return copyTournament(tournament), nil
}

func (r *fakeTournamentRepo) List(_ context.Context) ([]*models.Tournament, error) {
	out := []*models.Tournament{}
	for _, tournament := range r.tournaments {
		out = append(out, copyTournament(tournament))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, tournament *models.Tournament) error {
	if _, ok := r.tournaments[tournament.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.tournaments[tournament.ID] = copyTournament(tournament)
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	tournament, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	tournament.Status = status
	return nil
}

func (r *fakeTournamentRepo) SetChampion(_ context.Context, _ repositories.SQLExecutor, id, competitorID int) error {
	tournament, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	champion := competitorID
	tournament.ChampionID = &champion
	tournament.Status = models.StatusCompleted
	return nil
}

func (r *fakeTournamentRepo) ListDueForStatus(_ context.Context, current models.TournamentStatus, dateColumn string) ([]*models.Tournament, error) {
	now := time.Now()
	out := []*models.Tournament{}
	for _, tournament := range r.tournaments {
		if tournament.Status != current {
			continue
		}
		var due time.Time
		switch dateColumn {
		case "reg_date":
			due = tournament.RegDate
		case "start_date":
			due = tournament.StartDate
		case "end_date":
			due = tournament.EndDate
		}
		if !due.After(now) {
			out = append(out, copyTournament(tournament))
		}
	}
	return out, nil
}

// --- reports ---

type fakeReportRepo struct {
	reports map[int]map[int]*models.MatchReport // matchID -> slot
	nextID  int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: map[int]map[int]*models.MatchReport{}, nextID: 1}
}

func copyReport(rep *models.MatchReport) *models.MatchReport {
	c := *rep
	return &c
}

func (r *fakeReportRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, report *models.MatchReport) error {
	byMatch, ok := r.reports[report.MatchID]
	if !ok {
		byMatch = map[int]*models.MatchReport{}
		r.reports[report.MatchID] = byMatch
	}
	if existing, ok := byMatch[report.Slot]; ok {
		report.ID = existing.ID
	} else {
		report.ID = r.nextID
		r.nextID++
	}
	report.SubmittedAt = time.Now()
	byMatch[report.Slot] = copyReport(report)
	return nil
}

func (r *fakeReportRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.MatchReport, error) {
	out := []*models.MatchReport{}
	for _, slot := range []int{1, 2} {
		if report, ok := r.reports[matchID][slot]; ok {
			out = append(out, copyReport(report))
		}
	}
	return out, nil
}

func (r *fakeReportRepo) DeleteByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	delete(r.reports, matchID)
	return nil
}

func (r *fakeReportRepo) ListStale(_ context.Context, _ repositories.SQLExecutor, cutoff time.Time) ([]*models.MatchReport, error) {
	out := []*models.MatchReport{}
	for _, byMatch := range r.reports {
		for _, report := range byMatch {
			if report.SubmittedAt.Before(cutoff) {
				out = append(out, copyReport(report))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// --- qualification records ---

type fakeRecordRepo struct {
	records map[[2]int]*models.QualificationRecord // (tournamentID, competitorID)
	nextID  int
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: map[[2]int]*models.QualificationRecord{}, nextID: 1}
}

func copyRecord(rec *models.QualificationRecord) *models.QualificationRecord {
	c := *rec
	return &c
}

func (r *fakeRecordRepo) Replace(_ context.Context, _ repositories.SQLExecutor, record *models.QualificationRecord) error {
	key := [2]int{record.TournamentID, record.CompetitorID}
	if existing, ok := r.records[key]; ok {
		record.ID = existing.ID
	} else {
		record.ID = r.nextID
		r.nextID++
	}
	record.UpdatedAt = time.Now()
	r.records[key] = copyRecord(record)
	return nil
}

func (r *fakeRecordRepo) GetByTournamentAndCompetitor(_ context.Context, _ repositories.SQLExecutor, tournamentID, competitorID int) (*models.QualificationRecord, error) {
	record, ok := r.records[[2]int{tournamentID, competitorID}]
	if !ok {
		return nil, repositories.ErrQualificationRecordNotFound
	}
	return copyRecord(record), nil
}

func (r *fakeRecordRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, ranked bool) ([]*models.QualificationRecord, error) {
	out := []*models.QualificationRecord{}
	for _, record := range r.records {
		if record.TournamentID == tournamentID {
			out = append(out, copyRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !ranked {
			return a.CompetitorID < b.CompetitorID
		}
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Diff != b.Diff {
			return a.Diff > b.Diff
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.CompetitorID < b.CompetitorID
	})
	return out, nil
}

func (r *fakeRecordRepo) BatchCreate(ctx context.Context, exec repositories.SQLExecutor, records []*models.QualificationRecord) error {
	for _, record := range records {
		key := [2]int{record.TournamentID, record.CompetitorID}
		if _, ok := r.records[key]; ok {
			continue
		}
		if err := r.Replace(ctx, exec, record); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRecordRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	for key := range r.records {
		if key[0] == tournamentID {
			delete(r.records, key)
		}
	}
	return nil
}

// --- competitors ---

type fakeCompetitorRepo struct {
	competitors map[int]*models.Competitor
	nextID      int
}

func newFakeCompetitorRepo() *fakeCompetitorRepo {
	return &fakeCompetitorRepo{competitors: map[int]*models.Competitor{}, nextID: 1}
}

func copyCompetitor(c *models.Competitor) *models.Competitor {
	cp := *c
	return &cp
}

func (r *fakeCompetitorRepo) add(id int, handle string) {
	r.competitors[id] = &models.Competitor{ID: id, DisplayName: handle, Handle: handle, CreatedAt: time.Now()}
	if id >= r.nextID {
		r.nextID = id + 1
	}
}

func (r *fakeCompetitorRepo) Create(_ context.Context, competitor *models.Competitor) error {
	for _, existing := range r.competitors {
		if existing.Handle == competitor.Handle && !existing.Deleted {
			return repositories.ErrCompetitorHandleConflict
		}
	}
	competitor.ID = r.nextID
	r.nextID++
	competitor.CreatedAt = time.Now()
	r.competitors[competitor.ID] = copyCompetitor(competitor)
	return nil
}

func (r *fakeCompetitorRepo) GetByID(_ context.Context, id int) (*models.Competitor, error) {
	competitor, ok := r.competitors[id]
	if !ok {
		return nil, repositories.ErrCompetitorNotFound
	}
	return copyCompetitor(competitor), nil
}

func (r *fakeCompetitorRepo) GetByIDs(_ context.Context, ids []int) ([]*models.Competitor, error) {
	out := []*models.Competitor{}
	for _, id := range ids {
		if competitor, ok := r.competitors[id]; ok {
			out = append(out, copyCompetitor(competitor))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCompetitorRepo) List(_ context.Context, includeDeleted bool) ([]*models.Competitor, error) {
	out := []*models.Competitor{}
	for _, competitor := range r.competitors {
		if competitor.Deleted && !includeDeleted {
			continue
		}
		out = append(out, copyCompetitor(competitor))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (r *fakeCompetitorRepo) Update(_ context.Context, competitor *models.Competitor) error {
	existing, ok := r.competitors[competitor.ID]
	if !ok || existing.Deleted {
		return repositories.ErrCompetitorNotFound
	}
	existing.DisplayName = competitor.DisplayName
	existing.Handle = competitor.Handle
	return nil
}

func (r *fakeCompetitorRepo) UpdateAvatarKey(_ context.Context, id int, key *string) error {
	competitor, ok := r.competitors[id]
	if !ok {
		return repositories.ErrCompetitorNotFound
	}
	competitor.AvatarKey = key
	return nil
}

func (r *fakeCompetitorRepo) SoftDelete(_ context.Context, id int) error {
	competitor, ok := r.competitors[id]
	if !ok || competitor.Deleted {
		return repositories.ErrCompetitorNotFound
	}
	competitor.Deleted = true
	return nil
}
