package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	apperrors "lab-request-system/pkg/errors"
)

type RequestRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, req *entities.AnalysisRequest) (uint64, error)
	ReplaceAnalysisTypesInTx(ctx context.Context, tx pgx.Tx, requestID uint64, typeIDs []uint64) error
	FindByID(ctx context.Context, id uint64) (*entities.AnalysisRequest, error)
	FindForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.AnalysisRequest, error)
	UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error
	CountByNumberPrefix(ctx context.Context, prefix string) (uint64, error)
	List(ctx context.Context, filter dto.RequestListFilter) ([]entities.AnalysisRequest, uint64, error)
	ListAll(ctx context.Context) ([]entities.AnalysisRequest, error)
}

type requestRepository struct {
	storage *pgxpool.Pool
}

func NewRequestRepository(storage *pgxpool.Pool) RequestRepositoryInterface {
	return &requestRepository{storage: storage}
}

const requestColumns = `id, request_number, chemist_id, analyst_id, compound_name, priority, due_date,
	status, description, chemist_comments, analyst_comments, created_at, updated_at, completed_at`

func scanRequest(row pgx.Row) (*entities.AnalysisRequest, error) {
	var req entities.AnalysisRequest
	err := row.Scan(
		&req.ID, &req.RequestNumber, &req.ChemistID, &req.AnalystID, &req.CompoundName,
		&req.Priority, &req.DueDate, &req.Status, &req.Description,
		&req.ChemistComments, &req.AnalystComments, &req.CreatedAt, &req.UpdatedAt, &req.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	return &req, nil
}

// CreateInTx inserts the request row. A duplicate request_number surfaces as
// a unique violation; callers detect it with IsUniqueViolation and retry the
// whole transaction with a fresh number.
func (r *requestRepository) CreateInTx(ctx context.Context, tx pgx.Tx, req *entities.AnalysisRequest) (uint64, error) {
	query := `
		INSERT INTO analysis_requests
			(request_number, chemist_id, compound_name, priority, due_date, status,
			 description, chemist_comments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id`

	var id uint64
	err := tx.QueryRow(ctx, query,
		req.RequestNumber, req.ChemistID, req.CompoundName, req.Priority, req.DueDate,
		req.Status, req.Description, req.ChemistComments,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReplaceAnalysisTypesInTx swaps the request's type selection as one unit:
// existing links are removed and the new set inserted.
func (r *requestRepository) ReplaceAnalysisTypesInTx(ctx context.Context, tx pgx.Tx, requestID uint64, typeIDs []uint64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM request_analysis_types WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("failed to clear analysis type links: %w", err)
	}

	for _, typeID := range typeIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO request_analysis_types (request_id, analysis_type_id) VALUES ($1, $2)`,
			requestID, typeID)
		if err != nil {
			return fmt.Errorf("failed to insert analysis type link: %w", err)
		}
	}
	return nil
}

func (r *requestRepository) FindByID(ctx context.Context, id uint64) (*entities.AnalysisRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM analysis_requests WHERE id = $1`
	return scanRequest(r.storage.QueryRow(ctx, query, id))
}

// FindForUpdateInTx locks the row for the remainder of the transaction, so
// the claim's check-and-set runs as one atomic unit per request id.
func (r *requestRepository) FindForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.AnalysisRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM analysis_requests WHERE id = $1 FOR UPDATE`
	return scanRequest(tx.QueryRow(ctx, query, id))
}

func (r *requestRepository) UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	query, args, err := sq.Update("analysis_requests").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *requestRepository) CountByNumberPrefix(ctx context.Context, prefix string) (uint64, error) {
	var count uint64
	err := r.storage.QueryRow(ctx,
		`SELECT COUNT(*) FROM analysis_requests WHERE request_number LIKE $1`, prefix+"%",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count request numbers: %w", err)
	}
	return count, nil
}

func applyRequestFilter(builder sq.SelectBuilder, filter dto.RequestListFilter) sq.SelectBuilder {
	if filter.ChemistID != 0 {
		builder = builder.Where(sq.Eq{"chemist_id": filter.ChemistID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Priority != "" {
		builder = builder.Where(sq.Eq{"priority": filter.Priority})
	}
	if filter.AnalystID != nil {
		if *filter.AnalystID == 0 {
			builder = builder.Where("analyst_id IS NULL")
		} else {
			builder = builder.Where(sq.Eq{"analyst_id": *filter.AnalystID})
		}
	}
	return builder
}

func (r *requestRepository) List(ctx context.Context, filter dto.RequestListFilter) ([]entities.AnalysisRequest, uint64, error) {
	countBuilder := applyRequestFilter(
		sq.Select("COUNT(*)").From("analysis_requests").PlaceholderFormat(sq.Dollar), filter)

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	offset := uint64(filter.Page-1) * uint64(filter.PageSize)
	builder := applyRequestFilter(
		sq.Select(requestColumns).From("analysis_requests").PlaceholderFormat(sq.Dollar), filter).
		OrderBy("created_at DESC").
		Limit(uint64(filter.PageSize)).
		Offset(offset)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests, err := collectRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

func (r *requestRepository) ListAll(ctx context.Context) ([]entities.AnalysisRequest, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT `+requestColumns+` FROM analysis_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]entities.AnalysisRequest, error) {
	requests := make([]entities.AnalysisRequest, 0)
	for rows.Next() {
		var req entities.AnalysisRequest
		err := rows.Scan(
			&req.ID, &req.RequestNumber, &req.ChemistID, &req.AnalystID, &req.CompoundName,
			&req.Priority, &req.DueDate, &req.Status, &req.Description,
			&req.ChemistComments, &req.AnalystComments, &req.CreatedAt, &req.UpdatedAt, &req.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
