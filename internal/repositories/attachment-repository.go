package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lab-request-system/internal/entities"
	apperrors "lab-request-system/pkg/errors"
)

type AttachmentRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, attachment *entities.Attachment) (uint64, error)
	FindByID(ctx context.Context, id uint64) (*entities.Attachment, error)
	FindAllByRequestID(ctx context.Context, requestID uint64) ([]entities.Attachment, error)
	FindAllByRequestIDs(ctx context.Context, requestIDs []uint64) (map[uint64][]entities.Attachment, error)
	DeleteInTx(ctx context.Context, tx pgx.Tx, id uint64) error
}

type attachmentRepository struct {
	storage *pgxpool.Pool
}

func NewAttachmentRepository(storage *pgxpool.Pool) AttachmentRepositoryInterface {
	return &attachmentRepository{storage: storage}
}

const attachmentColumns = `id, request_id, uploaded_by, file_name, file_path, file_size, uploaded_at`

func (r *attachmentRepository) CreateInTx(ctx context.Context, tx pgx.Tx, attachment *entities.Attachment) (uint64, error) {
	query := `
		INSERT INTO attachments (request_id, uploaded_by, file_name, file_path, file_size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`

	var id uint64
	err := tx.QueryRow(ctx, query,
		attachment.RequestID, attachment.UploadedBy, attachment.FileName, attachment.FilePath, attachment.FileSize,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attachment: %w", err)
	}
	return id, nil
}

func (r *attachmentRepository) FindByID(ctx context.Context, id uint64) (*entities.Attachment, error) {
	var a entities.Attachment
	err := r.storage.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id,
	).Scan(&a.ID, &a.RequestID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.FileSize, &a.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan attachment: %w", err)
	}
	return &a, nil
}

func (r *attachmentRepository) FindAllByRequestID(ctx context.Context, requestID uint64) ([]entities.Attachment, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE request_id = $1 ORDER BY uploaded_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]entities.Attachment, 0)
	for rows.Next() {
		var a entities.Attachment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.FileSize, &a.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (r *attachmentRepository) FindAllByRequestIDs(ctx context.Context, requestIDs []uint64) (map[uint64][]entities.Attachment, error) {
	result := make(map[uint64][]entities.Attachment, len(requestIDs))
	if len(requestIDs) == 0 {
		return result, nil
	}

	rows, err := r.storage.Query(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE request_id = ANY($1) ORDER BY uploaded_at`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a entities.Attachment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.UploadedBy, &a.FileName, &a.FilePath, &a.FileSize, &a.UploadedAt); err != nil {
			return nil, err
		}
		result[a.RequestID] = append(result[a.RequestID], a)
	}
	return result, rows.Err()
}

func (r *attachmentRepository) DeleteInTx(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
