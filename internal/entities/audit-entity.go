package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

// FieldChange is one before/after pair inside an audit delta.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// AuditEntry is append-only: rows are inserted in the same transaction as the
// mutation they describe and are never updated or deleted.
type AuditEntry struct {
	ID         uint64                 `db:"id"`
	UserID     uint64                 `db:"user_id"`
	Action     string                 `db:"action"`
	EntityType string                 `db:"entity_type"`
	EntityID   null.Uint64            `db:"entity_id"`
	Changes    map[string]FieldChange `db:"changes"`
	Details    null.String            `db:"details"`
	CreatedAt  time.Time              `db:"created_at"`
}
