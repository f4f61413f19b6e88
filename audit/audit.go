package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/repositories"
)

// Recorder appends audit entries for state-changing actions. Appending is
// fire-and-forget: a failed append must never abort the mutation it
// describes.
type Recorder interface {
	Record(ctx context.Context, action string, actor *int, target string, details interface{})
}

type recorder struct {
	repo   repositories.AuditRepository
	logger *slog.Logger
}

func NewRecorder(repo repositories.AuditRepository, logger *slog.Logger) Recorder {
	return &recorder{repo: repo, logger: logger}
}

func (r *recorder) Record(ctx context.Context, action string, actor *int, target string, details interface{}) {
	entry := &models.AuditEntry{
		ID:     uuid.New(),
		Action: action,
		Actor:  actor,
		Target: target,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			r.logger.Warn("audit details not serializable", "action", action, "error", err)
		} else {
			entry.Details = raw
		}
	}

	// Detached from the request context so a canceled request still leaves
	// a trail for the mutation it committed.
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("audit append panicked", "action", action, "panic", rec)
			}
		}()

		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.repo.Insert(writeCtx, entry); err != nil {
			r.logger.Error("audit append failed", "action", action, "target", target, "error", err)
		}
	}()
}

type noopRecorder struct{}

// NewNoop returns a recorder that drops everything. Used in tests.
func NewNoop() Recorder { return noopRecorder{} }

func (noopRecorder) Record(context.Context, string, *int, string, interface{}) {}
