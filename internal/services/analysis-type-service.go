package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
)

const (
	activeTypesCacheKey = "analysis_types:active"
	activeTypesCacheTTL = 10 * time.Minute
)

type AnalysisTypeServiceInterface interface {
	ListActive(ctx context.Context, actorID uint64) ([]entities.AnalysisType, error)
	List(ctx context.Context, actorID uint64) ([]entities.AnalysisType, error)
	Create(ctx context.Context, actorID uint64, payload dto.CreateAnalysisTypeDTO) (*entities.AnalysisType, error)
	Update(ctx context.Context, actorID uint64, id uint64, payload dto.UpdateAnalysisTypeDTO) error
}

type analysisTypeService struct {
	typeRepo  repositories.AnalysisTypeRepositoryInterface
	userRepo  repositories.UserRepositoryInterface
	auditRepo repositories.AuditRepositoryInterface
	txManager repositories.TxManagerInterface
	cache     repositories.CacheRepositoryInterface
	gate      *authz.Gate
	logger    *zap.Logger
}

func NewAnalysisTypeService(
	typeRepo repositories.AnalysisTypeRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	auditRepo repositories.AuditRepositoryInterface,
	txManager repositories.TxManagerInterface,
	cache repositories.CacheRepositoryInterface,
	gate *authz.Gate,
	logger *zap.Logger,
) AnalysisTypeServiceInterface {
	return &analysisTypeService{
		typeRepo:  typeRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		cache:     cache,
		gate:      gate,
		logger:    logger,
	}
}

// ListActive serves the catalog from the cache when possible. A cache miss or
// a broken cache falls back to the database.
func (s *analysisTypeService) ListActive(ctx context.Context, actorID uint64) ([]entities.AnalysisType, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionTypeView) {
		return nil, apperrors.NewForbiddenError("not allowed to view analysis types")
	}

	if cached, err := s.cache.Get(ctx, activeTypesCacheKey); err == nil {
		var types []entities.AnalysisType
		if err := json.Unmarshal([]byte(cached), &types); err == nil {
			return types, nil
		}
	}

	types, err := s.typeRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(types); err == nil {
		if err := s.cache.Set(ctx, activeTypesCacheKey, string(encoded), activeTypesCacheTTL); err != nil {
			s.logger.Warn("failed to cache analysis types", zap.Error(err))
		}
	}
	return types, nil
}

func (s *analysisTypeService) List(ctx context.Context, actorID uint64) ([]entities.AnalysisType, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionTypeManage) {
		return nil, apperrors.NewForbiddenError("only administrators can manage analysis types")
	}
	return s.typeRepo.List(ctx)
}

func (s *analysisTypeService) Create(ctx context.Context, actorID uint64, payload dto.CreateAnalysisTypeDTO) (*entities.AnalysisType, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionTypeManage) {
		return nil, apperrors.NewForbiddenError("only administrators can manage analysis types")
	}

	t := &entities.AnalysisType{
		Code:        payload.Code,
		Name:        payload.Name,
		Description: null.StringFromPtr(payload.Description),
		IsActive:    true,
	}

	var id uint64
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		id, err = s.typeRepo.CreateInTx(ctx, tx, t)
		if err != nil {
			return err
		}
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionCreateType,
			EntityType: constants.EntityAnalysisType,
			EntityID:   nullUint64(id),
			Changes: map[string]entities.FieldChange{
				"code": {Old: nil, New: t.Code},
				"name": {Old: nil, New: t.Name},
			},
		})
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("analysis type code already exists", err)
		}
		return nil, err
	}
	t.ID = id

	s.invalidateCache(ctx)
	return t, nil
}

func (s *analysisTypeService) Update(ctx context.Context, actorID uint64, id uint64, payload dto.UpdateAnalysisTypeDTO) error {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionTypeManage) {
		return apperrors.NewForbiddenError("only administrators can manage analysis types")
	}

	fields := make(map[string]interface{})
	changes := make(map[string]entities.FieldChange)
	if payload.Name != nil {
		fields["name"] = *payload.Name
		changes["name"] = entities.FieldChange{New: *payload.Name}
	}
	if payload.Description != nil {
		fields["description"] = *payload.Description
		changes["description"] = entities.FieldChange{New: *payload.Description}
	}
	if payload.IsActive != nil {
		fields["is_active"] = *payload.IsActive
		changes["is_active"] = entities.FieldChange{New: *payload.IsActive}
	}
	if len(fields) == 0 {
		return nil
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.typeRepo.UpdateInTx(ctx, tx, id, fields); err != nil {
			return err
		}
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionUpdateType,
			EntityType: constants.EntityAnalysisType,
			EntityID:   nullUint64(id),
			Changes:    changes,
		})
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx)
	return nil
}

func (s *analysisTypeService) invalidateCache(ctx context.Context) {
	if err := s.cache.Del(ctx, activeTypesCacheKey); err != nil {
		s.logger.Warn("failed to invalidate analysis type cache", zap.Error(err))
	}
}
