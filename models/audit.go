package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of a state-changing action.
// Appends are fire-and-forget; a failed append never aborts the mutation
// it describes.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	Action    string          `json:"action"`
	Actor     *int            `json:"actor,omitempty"`
	Target    string          `json:"target"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
