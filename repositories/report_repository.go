package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/smk-league/models"
	"github.com/lib/pq"
)

var (
	ErrMatchReportNotFound     = errors.New("match report not found")
	ErrMatchReportMatchInvalid = errors.New("match report match conflict or invalid")
)

type MatchReportRepository interface {
	// Upsert stores the reporting slot's submission atomically; resubmitting
	// from the same slot overwrites the previous claim.
	Upsert(ctx context.Context, exec SQLExecutor, report *models.MatchReport) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchReport, error)
	DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error
	// ListStale returns pending reports on uncompleted matches submitted
	// before the cutoff, oldest first.
	ListStale(ctx context.Context, exec SQLExecutor, cutoff time.Time) ([]*models.MatchReport, error)
}

type postgresMatchReportRepository struct {
	db *sql.DB
}

func NewPostgresMatchReportRepository(db *sql.DB) MatchReportRepository {
	return &postgresMatchReportRepository{db: db}
}

func (r *postgresMatchReportRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchReportRepository) Upsert(ctx context.Context, exec SQLExecutor, report *models.MatchReport) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_reports (match_id, slot, competitor_id, score1, score2, details, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (match_id, slot) DO UPDATE
		SET competitor_id = EXCLUDED.competitor_id,
		    score1 = EXCLUDED.score1,
		    score2 = EXCLUDED.score2,
		    details = EXCLUDED.details,
		    submitted_at = NOW()
		RETURNING id, submitted_at`

	err := executor.QueryRowContext(ctx, query,
		report.MatchID,
		report.Slot,
		report.CompetitorID,
		report.Score1,
		report.Score2,
		nullableJSON(report.Details),
	).Scan(&report.ID, &report.SubmittedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "match_reports_match_id_fkey" {
			return ErrMatchReportMatchInvalid
		}
		return fmt.Errorf("failed to upsert report for match %d slot %d: %w", report.MatchID, report.Slot, err)
	}
	return nil
}

func (r *postgresMatchReportRepository) scanReport(rowScanner interface{ Scan(...interface{}) error }) (*models.MatchReport, error) {
	var rep models.MatchReport
	var details []byte
	err := rowScanner.Scan(
		&rep.ID, &rep.MatchID, &rep.Slot, &rep.CompetitorID,
		&rep.Score1, &rep.Score2, &details, &rep.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchReportNotFound
		}
		return nil, err
	}
	if len(details) > 0 {
		rep.Details = json.RawMessage(details)
	}
	return &rep, nil
}

func (r *postgresMatchReportRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchReport, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, slot, competitor_id, score1, score2, details, submitted_at
		FROM match_reports
		WHERE match_id = $1
		ORDER BY slot ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports for match %d: %w", matchID, err)
	}
	defer rows.Close()

	reports := make([]*models.MatchReport, 0, 2)
	for rows.Next() {
		rep, scanErr := r.scanReport(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", scanErr)
		}
		reports = append(reports, rep)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during report rows iteration: %w", err)
	}
	return reports, nil
}

func (r *postgresMatchReportRepository) DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM match_reports WHERE match_id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete reports for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresMatchReportRepository) ListStale(ctx context.Context, exec SQLExecutor, cutoff time.Time) ([]*models.MatchReport, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT r.id, r.match_id, r.slot, r.competitor_id, r.score1, r.score2, r.details, r.submitted_at
		FROM match_reports r
		JOIN matches m ON m.id = r.match_id
		WHERE m.completed = FALSE AND r.submitted_at < $1
		ORDER BY r.submitted_at ASC, r.match_id ASC, r.slot ASC`

	rows, err := executor.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*models.MatchReport, 0)
	for rows.Next() {
		rep, scanErr := r.scanReport(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan stale report row: %w", scanErr)
		}
		reports = append(reports, rep)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during stale report rows iteration: %w", err)
	}
	return reports, nil
}
