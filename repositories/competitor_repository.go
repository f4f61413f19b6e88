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
	ErrCompetitorNotFound       = errors.New("competitor not found")
	ErrCompetitorHandleConflict = errors.New("competitor handle is already in use")
)

type CompetitorRepository interface {
	Create(ctx context.Context, competitor *models.Competitor) error
	GetByID(ctx context.Context, id int) (*models.Competitor, error)
	GetByIDs(ctx context.Context, ids []int) ([]*models.Competitor, error)
	List(ctx context.Context, includeDeleted bool) ([]*models.Competitor, error)
	Update(ctx context.Context, competitor *models.Competitor) error
	UpdateAvatarKey(ctx context.Context, id int, key *string) error
	// SoftDelete flags the competitor; rows are never removed while matches
	// reference them.
	SoftDelete(ctx context.Context, id int) error
}

type postgresCompetitorRepository struct {
	db *sql.DB
}

func NewPostgresCompetitorRepository(db *sql.DB) CompetitorRepository {
	return &postgresCompetitorRepository{db: db}
}

func (r *postgresCompetitorRepository) Create(ctx context.Context, competitor *models.Competitor) error {
	query := `
		INSERT INTO competitors (display_name, handle)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, competitor.DisplayName, competitor.Handle).
		Scan(&competitor.ID, &competitor.CreatedAt)
	return r.handleCompetitorError(err)
}

func (r *postgresCompetitorRepository) scanCompetitor(rowScanner interface{ Scan(...interface{}) error }) (*models.Competitor, error) {
	var c models.Competitor
	err := rowScanner.Scan(&c.ID, &c.DisplayName, &c.Handle, &c.AvatarKey, &c.Deleted, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitorNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresCompetitorRepository) GetByID(ctx context.Context, id int) (*models.Competitor, error) {
	query := `
		SELECT id, display_name, handle, avatar_key, deleted, created_at
		FROM competitors
		WHERE id = $1`
	competitor, err := r.scanCompetitor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrCompetitorNotFound) {
			return nil, ErrCompetitorNotFound
		}
		return nil, fmt.Errorf("failed to scan competitor by id %d: %w", id, err)
	}
	return competitor, nil
}

func (r *postgresCompetitorRepository) GetByIDs(ctx context.Context, ids []int) ([]*models.Competitor, error) {
	if len(ids) == 0 {
		return []*models.Competitor{}, nil
	}
	query := `
		SELECT id, display_name, handle, avatar_key, deleted, created_at
		FROM competitors
		WHERE id = ANY($1)
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors by ids: %w", err)
	}
	defer rows.Close()

	competitors := make([]*models.Competitor, 0, len(ids))
	for rows.Next() {
		c, scanErr := r.scanCompetitor(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan competitor row: %w", scanErr)
		}
		competitors = append(competitors, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during competitor rows iteration: %w", err)
	}
	return competitors, nil
}

func (r *postgresCompetitorRepository) List(ctx context.Context, includeDeleted bool) ([]*models.Competitor, error) {
	query := `
		SELECT id, display_name, handle, avatar_key, deleted, created_at
		FROM competitors`
	if !includeDeleted {
		query += ` WHERE deleted = FALSE`
	}
	query += ` ORDER BY handle ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors: %w", err)
	}
	defer rows.Close()

	competitors := make([]*models.Competitor, 0)
	for rows.Next() {
		c, scanErr := r.scanCompetitor(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan competitor row: %w", scanErr)
		}
		competitors = append(competitors, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during competitor rows iteration: %w", err)
	}
	return competitors, nil
}

func (r *postgresCompetitorRepository) Update(ctx context.Context, competitor *models.Competitor) error {
	query := `
		UPDATE competitors
		SET display_name = $1, handle = $2
		WHERE id = $3 AND deleted = FALSE`

	result, err := r.db.ExecContext(ctx, query, competitor.DisplayName, competitor.Handle, competitor.ID)
	if err != nil {
		return r.handleCompetitorError(err)
	}
	return checkAffectedRows(result, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) UpdateAvatarKey(ctx context.Context, id int, key *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE competitors SET avatar_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("failed to update avatar key for competitor %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) SoftDelete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE competitors SET deleted = TRUE WHERE id = $1 AND deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete competitor %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) handleCompetitorError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if pqErr.Constraint == "competitors_handle_key" {
			return ErrCompetitorHandleConflict
		}
	}
	return err
}
