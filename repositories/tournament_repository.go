package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/smk-league/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound         = errors.New("tournament not found")
	ErrTournamentNameConflict     = errors.New("tournament name is already in use for this season")
	ErrTournamentOrganizerInvalid = errors.New("tournament organizer conflict or invalid")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context) ([]*models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	SetChampion(ctx context.Context, exec SQLExecutor, id, competitorID int) error
	// ListDueForStatus returns tournaments whose dates have crossed the
	// boundary for the given transition but whose status has not moved yet.
	ListDueForStatus(ctx context.Context, current models.TournamentStatus, dateColumn string) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, season, format, status, organizer_id,
	reg_date, start_date, end_date, champion_competitor_id, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, season, format, status, organizer_id, reg_date, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.Name,
		tournament.Season,
		tournament.Format,
		tournament.Status,
		tournament.OrganizerID,
		tournament.RegDate,
		tournament.StartDate,
		tournament.EndDate,
	).Scan(&tournament.ID, &tournament.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) scanTournament(rowScanner interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	var t models.Tournament
	err := rowScanner.Scan(
		&t.ID, &t.Name, &t.Season, &t.Format, &t.Status, &t.OrganizerID,
		&t.RegDate, &t.StartDate, &t.EndDate, &t.ChampionID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	tournament, err := r.scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments ORDER BY start_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := r.scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, tournament *models.Tournament) error {
	query := `
		UPDATE tournaments
		SET name = $1, season = $2, format = $3, reg_date = $4, start_date = $5, end_date = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		tournament.Name,
		tournament.Season,
		tournament.Format,
		tournament.RegDate,
		tournament.StartDate,
		tournament.EndDate,
		tournament.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournaments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetChampion(ctx context.Context, exec SQLExecutor, id, competitorID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournaments SET champion_competitor_id = $1, status = $2 WHERE id = $3`,
		competitorID, models.StatusCompleted, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set champion for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// allowed date columns; guards against interpolating anything else into SQL
var dueDateColumns = map[string]struct{}{
	"reg_date":   {},
	"start_date": {},
	"end_date":   {},
}

func (r *postgresTournamentRepository) ListDueForStatus(ctx context.Context, current models.TournamentStatus, dateColumn string) ([]*models.Tournament, error) {
	if _, ok := dueDateColumns[dateColumn]; !ok {
		return nil, fmt.Errorf("unsupported date column %q", dateColumn)
	}
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE status = $1 AND ` + dateColumn + ` <= NOW()`

	rows, err := r.db.QueryContext(ctx, query, current)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := r.scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "tournaments_name_season_key":
			return ErrTournamentNameConflict
		case "tournaments_organizer_id_fkey":
			return ErrTournamentOrganizerInvalid
		}
	}
	return err
}
