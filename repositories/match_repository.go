package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/smk-league/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchVersionConflict   = errors.New("match version conflict")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchCompetitorInvalid = errors.New("match competitor conflict or invalid")
	ErrMatchSeqConflict       = errors.New("match sequence number already exists for tournament stage")
)

// MatchFilter narrows ListByTournament. Nil fields match everything.
type MatchFilter struct {
	Stage     *models.MatchStage
	Completed *bool
}

// MatchResultUpdate carries the fields written by a result mutation.
type MatchResultUpdate struct {
	Score1    *int
	Score2    *int
	Details   json.RawMessage
	WinnerID  *int
	Completed bool
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByStageSeq(ctx context.Context, exec SQLExecutor, tournamentID int, stage models.MatchStage, seq int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter MatchFilter) ([]*models.Match, error)
	ListCompletedByCompetitor(ctx context.Context, exec SQLExecutor, tournamentID, competitorID int, stage models.MatchStage) ([]*models.Match, error)
	// UpdateResult is the compare-and-swap every result write goes through:
	// the row is updated only when its version equals expectedVersion and it
	// is not completed, and version is incremented by exactly 1. Zero rows
	// matched means another writer won the race: ErrMatchVersionConflict.
	UpdateResult(ctx context.Context, exec SQLExecutor, id, expectedVersion int, upd MatchResultUpdate) error
	// UpdateSlots fills competitor slots under the same version condition.
	UpdateSlots(ctx context.Context, exec SQLExecutor, id, expectedVersion int, slot1ID, slot2ID *int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, seq, stage, round, bracket_side,
	slot1_competitor_id, slot2_competitor_id, score1, score2, details,
	winner_competitor_id, completed, version, created_at, updated_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(tournament_id, seq, stage, round, bracket_side,
			 slot1_competitor_id, slot2_competitor_id, score1, score2, details,
			 winner_competitor_id, completed, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		RETURNING id, version, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID,
		match.Seq,
		match.Stage,
		match.Round,
		match.BracketSide,
		match.Slot1ID,
		match.Slot2ID,
		match.Score1,
		match.Score2,
		nullableJSON(match.Details),
		match.WinnerID,
		match.Completed,
	).Scan(&match.ID, &match.Version, &match.CreatedAt, &match.UpdatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var details []byte
	err := rowScanner.Scan(
		&m.ID, &m.TournamentID, &m.Seq, &m.Stage, &m.Round, &m.BracketSide,
		&m.Slot1ID, &m.Slot2ID, &m.Score1, &m.Score2, &details,
		&m.WinnerID, &m.Completed, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if len(details) > 0 {
		m.Details = json.RawMessage(details)
	}
	return &m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := r.scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) GetByStageSeq(ctx context.Context, exec SQLExecutor, tournamentID int, stage models.MatchStage, seq int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND stage = $2 AND seq = $3`
	match, err := r.scanMatch(executor.QueryRowContext(ctx, query, tournamentID, stage, seq))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match t:%d seq:%d: %w", tournamentID, seq, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter MatchFilter) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if filter.Stage != nil {
		queryBuilder.WriteString(" AND stage = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Stage)
		placeholderIndex++
	}
	if filter.Completed != nil {
		queryBuilder.WriteString(" AND completed = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Completed)
	}

	queryBuilder.WriteString(" ORDER BY stage ASC, seq ASC")

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) ListCompletedByCompetitor(ctx context.Context, exec SQLExecutor, tournamentID, competitorID int, stage models.MatchStage) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		  AND stage = $2
		  AND completed = TRUE
		  AND (slot1_competitor_id = $3 OR slot2_competitor_id = $3)
		ORDER BY seq ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID, stage, competitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed matches for competitor %d: %w", competitorID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id, expectedVersion int, upd MatchResultUpdate) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET score1 = $1, score2 = $2, details = $3, winner_competitor_id = $4,
		    completed = $5, version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7 AND completed = FALSE`

	result, err := executor.ExecContext(ctx, query,
		upd.Score1, upd.Score2, nullableJSON(upd.Details), upd.WinnerID,
		upd.Completed, id, expectedVersion,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchVersionConflict)
}

func (r *postgresMatchRepository) UpdateSlots(ctx context.Context, exec SQLExecutor, id, expectedVersion int, slot1ID, slot2ID *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET slot1_competitor_id = $1, slot2_competitor_id = $2,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4 AND completed = FALSE`

	result, err := executor.ExecContext(ctx, query, slot1ID, slot2ID, id, expectedVersion)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchVersionConflict)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_slot1_competitor_id_fkey", "matches_slot2_competitor_id_fkey", "matches_winner_competitor_id_fkey":
			return ErrMatchCompetitorInvalid
		case "matches_tournament_id_stage_seq_key":
			return ErrMatchSeqConflict
		}
	}
	return err
}
