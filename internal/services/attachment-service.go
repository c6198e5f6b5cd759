package services

import (
	"context"
	"errors"
	"io"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
	"lab-request-system/pkg/filestorage"
)

type AttachmentServiceInterface interface {
	Upload(ctx context.Context, actorID uint64, requestID uint64, fileName string, fileSize int64, file io.Reader) (*dto.ResultFileDTO, error)
	Download(ctx context.Context, actorID uint64, fileID uint64) (absPath string, fileName string, err error)
	List(ctx context.Context, actorID uint64, requestID uint64) ([]dto.ResultFileDTO, error)
	Delete(ctx context.Context, actorID uint64, fileID uint64) error
}

type attachmentService struct {
	attachmentRepo repositories.AttachmentRepositoryInterface
	requestRepo    repositories.RequestRepositoryInterface
	userRepo       repositories.UserRepositoryInterface
	auditRepo      repositories.AuditRepositoryInterface
	txManager      repositories.TxManagerInterface
	storage        filestorage.ResultStorageInterface
	gate           *authz.Gate
	logger         *zap.Logger
}

func NewAttachmentService(
	attachmentRepo repositories.AttachmentRepositoryInterface,
	requestRepo repositories.RequestRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	auditRepo repositories.AuditRepositoryInterface,
	txManager repositories.TxManagerInterface,
	storage filestorage.ResultStorageInterface,
	gate *authz.Gate,
	logger *zap.Logger,
) AttachmentServiceInterface {
	return &attachmentService{
		attachmentRepo: attachmentRepo,
		requestRepo:    requestRepo,
		userRepo:       userRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		storage:        storage,
		gate:           gate,
		logger:         logger,
	}
}

// Upload stores the result file and records it. The blob is written before
// the transaction; if the record fails the blob is removed again.
func (s *attachmentService) Upload(ctx context.Context, actorID uint64, requestID uint64, fileName string, fileSize int64, file io.Reader) (*dto.ResultFileDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionFileUpload) {
		return nil, apperrors.NewForbiddenError("only analysts can upload result files")
	}

	// Any analyst may file results, not just the assigned one; instrument
	// operators often upload on a colleague's behalf.
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	storedName, relPath, err := s.storage.Save(file, fileName, req.RequestNumber)
	if err != nil {
		if errors.Is(err, filestorage.ErrFileTooLarge) {
			return nil, apperrors.NewPayloadTooLargeError("file exceeds the maximum allowed size")
		}
		return nil, apperrors.NewStorageError("failed to store result file", err)
	}

	attachment := &entities.Attachment{
		RequestID:  requestID,
		UploadedBy: nullUint64(actor.ID),
		FileName:   storedName,
		FilePath:   relPath,
		FileSize:   fileSize,
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		id, err := s.attachmentRepo.CreateInTx(ctx, tx, attachment)
		if err != nil {
			return err
		}
		attachment.ID = id

		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionUploadFile,
			EntityType: constants.EntityFile,
			EntityID:   nullUint64(id),
			Changes: map[string]entities.FieldChange{
				"file_name": {Old: nil, New: storedName},
			},
		})
	})
	if err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned result file",
				zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("result file uploaded",
		zap.Uint64("request_id", requestID),
		zap.String("file_name", storedName),
		zap.Uint64("uploaded_by", actor.ID))
	return toResultFileDTO(attachment), nil
}

func (s *attachmentService) Download(ctx context.Context, actorID uint64, fileID uint64) (string, string, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return "", "", err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionFileDownload) {
		return "", "", apperrors.NewForbiddenError("not allowed to download result files")
	}

	attachment, err := s.attachmentRepo.FindByID(ctx, fileID)
	if err != nil {
		return "", "", err
	}
	if actor.Role == constants.RoleChemist {
		req, err := s.requestRepo.FindByID(ctx, attachment.RequestID)
		if err != nil {
			return "", "", err
		}
		if req.ChemistID != actor.ID {
			return "", "", apperrors.NewForbiddenError("request belongs to a different chemist")
		}
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionDownloadFile,
			EntityType: constants.EntityFile,
			EntityID:   nullUint64(fileID),
		})
	})
	if err != nil {
		return "", "", err
	}

	return s.storage.AbsPath(attachment.FilePath), attachment.FileName, nil
}

func (s *attachmentService) List(ctx context.Context, actorID uint64, requestID uint64) ([]dto.ResultFileDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionFileDownload) {
		return nil, apperrors.NewForbiddenError("not allowed to view result files")
	}

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Role == constants.RoleChemist && req.ChemistID != actor.ID {
		return nil, apperrors.NewForbiddenError("request belongs to a different chemist")
	}

	attachments, err := s.attachmentRepo.FindAllByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	result := make([]dto.ResultFileDTO, 0, len(attachments))
	for i := range attachments {
		result = append(result, *toResultFileDTO(&attachments[i]))
	}
	return result, nil
}

// Delete removes the blob first and the record second. A blob that is already
// gone does not block removing the record.
func (s *attachmentService) Delete(ctx context.Context, actorID uint64, fileID uint64) error {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionFileDelete) {
		return apperrors.NewForbiddenError("only analysts can delete result files")
	}

	attachment, err := s.attachmentRepo.FindByID(ctx, fileID)
	if err != nil {
		return err
	}
	if actor.Role != constants.RoleAdmin {
		req, err := s.requestRepo.FindByID(ctx, attachment.RequestID)
		if err != nil {
			return err
		}
		if !req.AnalystID.Valid || req.AnalystID.Uint64 != actor.ID {
			return apperrors.NewForbiddenError("request is assigned to a different analyst")
		}
	}

	if err := s.storage.Delete(attachment.FilePath); err != nil {
		return apperrors.NewStorageError("failed to delete result file", err)
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.attachmentRepo.DeleteInTx(ctx, tx, fileID); err != nil {
			return err
		}
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionDeleteFile,
			EntityType: constants.EntityFile,
			EntityID:   nullUint64(fileID),
			Changes: map[string]entities.FieldChange{
				"file_name": {Old: attachment.FileName, New: nil},
			},
		})
	})
}

func toResultFileDTO(a *entities.Attachment) *dto.ResultFileDTO {
	return &dto.ResultFileDTO{
		ID:         a.ID,
		RequestID:  a.RequestID,
		UploadedBy: a.UploadedBy.Ptr(),
		FileName:   a.FileName,
		FilePath:   a.FilePath,
		FileSize:   a.FileSize,
		UploadedAt: a.UploadedAt,
	}
}
