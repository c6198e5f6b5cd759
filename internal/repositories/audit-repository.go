package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
)

type AuditRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.AuditEntry) error
	List(ctx context.Context, filter dto.AuditListFilter) ([]entities.AuditEntry, uint64, error)
}

type auditRepository struct {
	storage *pgxpool.Pool
}

func NewAuditRepository(storage *pgxpool.Pool) AuditRepositoryInterface {
	return &auditRepository{storage: storage}
}

// CreateInTx writes the entry inside the caller's transaction, so the audit
// row commits or rolls back together with the mutation it describes.
func (r *auditRepository) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.AuditEntry) error {
	var changes []byte
	if len(entry.Changes) > 0 {
		var err error
		changes, err = json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal audit changes: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, changes, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID, changes, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func applyAuditFilter(builder sq.SelectBuilder, filter dto.AuditListFilter) sq.SelectBuilder {
	if filter.UserID != 0 {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.EntityType != "" {
		builder = builder.Where(sq.Eq{"entity_type": filter.EntityType})
	}
	if filter.EntityID != 0 {
		builder = builder.Where(sq.Eq{"entity_id": filter.EntityID})
	}
	if filter.Action != "" {
		builder = builder.Where(sq.Eq{"action": filter.Action})
	}
	return builder
}

func (r *auditRepository) List(ctx context.Context, filter dto.AuditListFilter) ([]entities.AuditEntry, uint64, error) {
	countQuery, countArgs, err := applyAuditFilter(
		sq.Select("COUNT(*)").From("audit_logs").PlaceholderFormat(sq.Dollar), filter).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	offset := uint64(filter.Page-1) * uint64(filter.PageSize)
	query, args, err := applyAuditFilter(
		sq.Select("id, user_id, action, entity_type, entity_id, changes, details, created_at").
			From("audit_logs").PlaceholderFormat(sq.Dollar), filter).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.PageSize)).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.AuditEntry, 0)
	for rows.Next() {
		var entry entities.AuditEntry
		var changes []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.EntityType,
			&entry.EntityID, &changes, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal audit changes: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}
