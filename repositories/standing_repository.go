package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/smk-league/models"
)

var (
	ErrQualificationRecordNotFound = errors.New("qualification record not found")
)

type QualificationRecordRepository interface {
	// Replace writes the aggregate as a full replacement row: the record is
	// a replay-derived cache, so partial increments are never applied.
	Replace(ctx context.Context, exec SQLExecutor, record *models.QualificationRecord) error
	GetByTournamentAndCompetitor(ctx context.Context, exec SQLExecutor, tournamentID, competitorID int) (*models.QualificationRecord, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, ranked bool) ([]*models.QualificationRecord, error)
	BatchCreate(ctx context.Context, exec SQLExecutor, records []*models.QualificationRecord) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresQualificationRecordRepository struct {
	db *sql.DB
}

func NewPostgresQualificationRecordRepository(db *sql.DB) QualificationRecordRepository {
	return &postgresQualificationRecordRepository{db: db}
}

func (r *postgresQualificationRecordRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresQualificationRecordRepository) Replace(ctx context.Context, exec SQLExecutor, record *models.QualificationRecord) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO qualification_records
			(tournament_id, competitor_id, played, wins, ties, losses, diff, points, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (tournament_id, competitor_id) DO UPDATE
		SET played = EXCLUDED.played,
		    wins = EXCLUDED.wins,
		    ties = EXCLUDED.ties,
		    losses = EXCLUDED.losses,
		    diff = EXCLUDED.diff,
		    points = EXCLUDED.points,
		    updated_at = NOW()
		RETURNING id, updated_at`

	err := executor.QueryRowContext(ctx, query,
		record.TournamentID, record.CompetitorID, record.Played,
		record.Wins, record.Ties, record.Losses, record.Diff, record.Points,
	).Scan(&record.ID, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to replace qualification record t:%d c:%d: %w", record.TournamentID, record.CompetitorID, err)
	}
	return nil
}

func (r *postgresQualificationRecordRepository) scanRecord(rowScanner interface{ Scan(...interface{}) error }) (*models.QualificationRecord, error) {
	var rec models.QualificationRecord
	err := rowScanner.Scan(
		&rec.ID, &rec.TournamentID, &rec.CompetitorID, &rec.Played,
		&rec.Wins, &rec.Ties, &rec.Losses, &rec.Diff, &rec.Points, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQualificationRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *postgresQualificationRecordRepository) GetByTournamentAndCompetitor(ctx context.Context, exec SQLExecutor, tournamentID, competitorID int) (*models.QualificationRecord, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, competitor_id, played, wins, ties, losses, diff, points, updated_at
		FROM qualification_records
		WHERE tournament_id = $1 AND competitor_id = $2`
	return r.scanRecord(executor.QueryRowContext(ctx, query, tournamentID, competitorID))
}

func (r *postgresQualificationRecordRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, ranked bool) ([]*models.QualificationRecord, error) {
	executor := r.getExecutor(exec)
	queryBuilder := strings.Builder{}
	queryBuilder.WriteString(`
		SELECT id, tournament_id, competitor_id, played, wins, ties, losses, diff, points, updated_at
		FROM qualification_records
		WHERE tournament_id = $1`)

	if ranked {
		// competitor_id last for a stable order between equal records
		queryBuilder.WriteString(" ORDER BY points DESC, diff DESC, wins DESC, competitor_id ASC")
	} else {
		queryBuilder.WriteString(" ORDER BY competitor_id ASC")
	}

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualification records for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	records := make([]*models.QualificationRecord, 0)
	for rows.Next() {
		rec, scanErr := r.scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan qualification record row: %w", scanErr)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during qualification record rows iteration: %w", err)
	}
	return records, nil
}

func (r *postgresQualificationRecordRepository) BatchCreate(ctx context.Context, exec SQLExecutor, records []*models.QualificationRecord) error {
	executor := r.getExecutor(exec)
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = time.Now()
		}
		query := `
			INSERT INTO qualification_records
				(tournament_id, competitor_id, played, wins, ties, losses, diff, points, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (tournament_id, competitor_id) DO NOTHING
			RETURNING id`
		err := executor.QueryRowContext(ctx, query,
			rec.TournamentID, rec.CompetitorID, rec.Played,
			rec.Wins, rec.Ties, rec.Losses, rec.Diff, rec.Points, rec.UpdatedAt,
		).Scan(&rec.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("batch create failed for competitor %d: %w", rec.CompetitorID, err)
		}
	}
	return nil
}

func (r *postgresQualificationRecordRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM qualification_records WHERE tournament_id = $1`, tournamentID)
	return err
}
