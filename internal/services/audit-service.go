package services

import (
	"context"

	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/config"
	apperrors "lab-request-system/pkg/errors"
)

type AuditServiceInterface interface {
	List(ctx context.Context, actorID uint64, filter dto.AuditListFilter) ([]dto.AuditEntryDTO, uint64, error)
}

type auditService struct {
	auditRepo repositories.AuditRepositoryInterface
	userRepo  repositories.UserRepositoryInterface
	gate      *authz.Gate
	listCfg   config.ListConfig
	logger    *zap.Logger
}

func NewAuditService(
	auditRepo repositories.AuditRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	gate *authz.Gate,
	listCfg config.ListConfig,
	logger *zap.Logger,
) AuditServiceInterface {
	return &auditService{
		auditRepo: auditRepo,
		userRepo:  userRepo,
		gate:      gate,
		listCfg:   listCfg,
		logger:    logger,
	}
}

func (s *auditService) List(ctx context.Context, actorID uint64, filter dto.AuditListFilter) ([]dto.AuditEntryDTO, uint64, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionAuditView) {
		return nil, 0, apperrors.NewForbiddenError("only administrators can view the audit trail")
	}

	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize, s.listCfg)

	entries, total, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]dto.AuditEntryDTO, 0, len(entries))
	for i := range entries {
		result = append(result, *toAuditEntryDTO(&entries[i]))
	}
	return result, total, nil
}

func toAuditEntryDTO(entry *entities.AuditEntry) *dto.AuditEntryDTO {
	return &dto.AuditEntryDTO{
		ID:         entry.ID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID.Ptr(),
		Changes:    entry.Changes,
		Details:    entry.Details.Ptr(),
		CreatedAt:  entry.CreatedAt,
	}
}
