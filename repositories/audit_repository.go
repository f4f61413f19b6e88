package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/smk-league/models"
)

type AuditRepository interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]*models.AuditEntry, error)
}

type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, action, actor_user_id, target, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.Action, entry.Actor, entry.Target, nullableJSON(entry.Details),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %s: %w", entry.Action, err)
	}
	return nil
}

func (r *postgresAuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, action, actor_user_id, target, details, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0, limit)
	for rows.Next() {
		var e models.AuditEntry
		var details []byte
		if scanErr := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Target, &details, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit entry row: %w", scanErr)
		}
		if len(details) > 0 {
			e.Details = details
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during audit rows iteration: %w", err)
	}
	return entries, nil
}
