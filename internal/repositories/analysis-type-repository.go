package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lab-request-system/internal/entities"
	apperrors "lab-request-system/pkg/errors"
)

type AnalysisTypeRepositoryInterface interface {
	FindActiveByIDs(ctx context.Context, ids []uint64) ([]entities.AnalysisType, error)
	ListActive(ctx context.Context) ([]entities.AnalysisType, error)
	List(ctx context.Context) ([]entities.AnalysisType, error)
	CreateInTx(ctx context.Context, tx pgx.Tx, t *entities.AnalysisType) (uint64, error)
	UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error
	FindByRequestID(ctx context.Context, requestID uint64) ([]entities.AnalysisType, error)
	FindByRequestIDs(ctx context.Context, requestIDs []uint64) (map[uint64][]entities.AnalysisType, error)
}

type analysisTypeRepository struct {
	storage *pgxpool.Pool
}

func NewAnalysisTypeRepository(storage *pgxpool.Pool) AnalysisTypeRepositoryInterface {
	return &analysisTypeRepository{storage: storage}
}

const analysisTypeColumns = `id, code, name, description, is_active`

func collectAnalysisTypes(rows pgx.Rows) ([]entities.AnalysisType, error) {
	defer rows.Close()

	types := make([]entities.AnalysisType, 0)
	for rows.Next() {
		var t entities.AnalysisType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &t.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan analysis type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *analysisTypeRepository) FindActiveByIDs(ctx context.Context, ids []uint64) ([]entities.AnalysisType, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT `+analysisTypeColumns+` FROM analysis_types WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis types: %w", err)
	}
	return collectAnalysisTypes(rows)
}

func (r *analysisTypeRepository) ListActive(ctx context.Context) ([]entities.AnalysisType, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT `+analysisTypeColumns+` FROM analysis_types WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis types: %w", err)
	}
	return collectAnalysisTypes(rows)
}

func (r *analysisTypeRepository) List(ctx context.Context) ([]entities.AnalysisType, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT `+analysisTypeColumns+` FROM analysis_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis types: %w", err)
	}
	return collectAnalysisTypes(rows)
}

func (r *analysisTypeRepository) CreateInTx(ctx context.Context, tx pgx.Tx, t *entities.AnalysisType) (uint64, error) {
	var id uint64
	err := tx.QueryRow(ctx,
		`INSERT INTO analysis_types (code, name, description, is_active) VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Code, t.Name, t.Description, t.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis type: %w", err)
	}
	return id, nil
}

func (r *analysisTypeRepository) UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	query, args, err := sq.Update("analysis_types").
		SetMap(fields).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update analysis type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *analysisTypeRepository) FindByRequestID(ctx context.Context, requestID uint64) ([]entities.AnalysisType, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT t.id, t.code, t.name, t.description, t.is_active
		FROM analysis_types t
		JOIN request_analysis_types rat ON rat.analysis_type_id = t.id
		WHERE rat.request_id = $1
		ORDER BY t.code`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request analysis types: %w", err)
	}
	return collectAnalysisTypes(rows)
}

func (r *analysisTypeRepository) FindByRequestIDs(ctx context.Context, requestIDs []uint64) (map[uint64][]entities.AnalysisType, error) {
	result := make(map[uint64][]entities.AnalysisType, len(requestIDs))
	if len(requestIDs) == 0 {
		return result, nil
	}

	rows, err := r.storage.Query(ctx, `
		SELECT rat.request_id, t.id, t.code, t.name, t.description, t.is_active
		FROM analysis_types t
		JOIN request_analysis_types rat ON rat.analysis_type_id = t.id
		WHERE rat.request_id = ANY($1)
		ORDER BY t.code`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load request analysis types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var requestID uint64
		var t entities.AnalysisType
		if err := rows.Scan(&requestID, &t.ID, &t.Code, &t.Name, &t.Description, &t.IsActive); err != nil {
			return nil, err
		}
		result[requestID] = append(result[requestID], t)
	}
	return result, rows.Err()
}
