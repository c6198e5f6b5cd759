package dto

import (
	"time"

	"lab-request-system/internal/entities"
)

type AuditEntryDTO struct {
	ID         uint64                          `json:"id"`
	UserID     uint64                          `json:"user_id"`
	Action     string                          `json:"action"`
	EntityType string                          `json:"entity_type"`
	EntityID   *uint64                         `json:"entity_id,omitempty"`
	Changes    map[string]entities.FieldChange `json:"changes,omitempty"`
	Details    *string                         `json:"details,omitempty"`
	CreatedAt  time.Time                       `json:"created_at"`
}

type AuditListFilter struct {
	Page       int
	PageSize   int
	UserID     uint64
	EntityType string
	EntityID   uint64
	Action     string
}
