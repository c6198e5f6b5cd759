package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/config"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
	"lab-request-system/pkg/utils"
)

type UserServiceInterface interface {
	Create(ctx context.Context, actorID uint64, payload dto.CreateUserDTO) (*dto.UserDTO, error)
	Update(ctx context.Context, actorID uint64, id uint64, payload dto.UpdateUserDTO) (*dto.UserDTO, error)
	FindByID(ctx context.Context, actorID uint64, id uint64) (*dto.UserDTO, error)
	List(ctx context.Context, actorID uint64, filter dto.UserListFilter) ([]dto.UserDTO, uint64, error)
}

type userService struct {
	userRepo  repositories.UserRepositoryInterface
	auditRepo repositories.AuditRepositoryInterface
	txManager repositories.TxManagerInterface
	gate      *authz.Gate
	listCfg   config.ListConfig
	logger    *zap.Logger
}

func NewUserService(
	userRepo repositories.UserRepositoryInterface,
	auditRepo repositories.AuditRepositoryInterface,
	txManager repositories.TxManagerInterface,
	gate *authz.Gate,
	listCfg config.ListConfig,
	logger *zap.Logger,
) UserServiceInterface {
	return &userService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		gate:      gate,
		listCfg:   listCfg,
		logger:    logger,
	}
}

func (s *userService) requireManager(ctx context.Context, actorID uint64) (*entities.User, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionUserManage) {
		return nil, apperrors.NewForbiddenError("only administrators can manage users")
	}
	return actor, nil
}

func (s *userService) Create(ctx context.Context, actorID uint64, payload dto.CreateUserDTO) (*dto.UserDTO, error) {
	actor, err := s.requireManager(ctx, actorID)
	if err != nil {
		return nil, err
	}

	taken, err := s.userRepo.ExistsByUsername(ctx, payload.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.NewConflictError("username is already taken", nil)
	}
	taken, err = s.userRepo.ExistsByEmail(ctx, payload.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.NewConflictError("email is already in use", nil)
	}

	hash, err := utils.HashPassword(payload.Password)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     payload.Username,
		Email:        payload.Email,
		PasswordHash: hash,
		FullName:     payload.FullName,
		Role:         constants.UserRole(payload.Role),
		IsActive:     true,
	}

	var id uint64
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		id, err = s.userRepo.CreateInTx(ctx, tx, user)
		if err != nil {
			return err
		}
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionCreateUser,
			EntityType: constants.EntityUser,
			EntityID:   nullUint64(id),
			Changes: map[string]entities.FieldChange{
				"username": {Old: nil, New: user.Username},
				"role":     {Old: nil, New: user.Role.String()},
			},
		})
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("username or email is already in use", err)
		}
		return nil, err
	}
	user.ID = id

	s.logger.Info("user created",
		zap.Uint64("user_id", id),
		zap.String("role", user.Role.String()),
		zap.Uint64("created_by", actor.ID))
	return toUserDTO(user), nil
}

func (s *userService) Update(ctx context.Context, actorID uint64, id uint64, payload dto.UpdateUserDTO) (*dto.UserDTO, error) {
	actor, err := s.requireManager(ctx, actorID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	changes := make(map[string]entities.FieldChange)

	if payload.Email != nil && *payload.Email != user.Email {
		inUse, err := s.userRepo.ExistsByEmail(ctx, *payload.Email, id)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, apperrors.NewConflictError("email is already in use", nil)
		}
		fields["email"] = *payload.Email
		changes["email"] = entities.FieldChange{Old: user.Email, New: *payload.Email}
		user.Email = *payload.Email
	}
	if payload.FullName != nil && *payload.FullName != user.FullName {
		fields["full_name"] = *payload.FullName
		changes["full_name"] = entities.FieldChange{Old: user.FullName, New: *payload.FullName}
		user.FullName = *payload.FullName
	}
	if payload.Role != nil && constants.UserRole(*payload.Role) != user.Role {
		fields["role"] = *payload.Role
		changes["role"] = entities.FieldChange{Old: user.Role.String(), New: *payload.Role}
		user.Role = constants.UserRole(*payload.Role)
	}
	if payload.IsActive != nil && *payload.IsActive != user.IsActive {
		fields["is_active"] = *payload.IsActive
		changes["is_active"] = entities.FieldChange{Old: user.IsActive, New: *payload.IsActive}
		user.IsActive = *payload.IsActive
	}

	if len(fields) == 0 {
		return toUserDTO(user), nil
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.userRepo.UpdateInTx(ctx, tx, id, fields); err != nil {
			return err
		}
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionUpdateUser,
			EntityType: constants.EntityUser,
			EntityID:   nullUint64(id),
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	return toUserDTO(user), nil
}

func (s *userService) FindByID(ctx context.Context, actorID uint64, id uint64) (*dto.UserDTO, error) {
	if _, err := s.requireManager(ctx, actorID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserDTO(user), nil
}

func (s *userService) List(ctx context.Context, actorID uint64, filter dto.UserListFilter) ([]dto.UserDTO, uint64, error) {
	if _, err := s.requireManager(ctx, actorID); err != nil {
		return nil, 0, err
	}

	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize, s.listCfg)

	users, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]dto.UserDTO, 0, len(users))
	for i := range users {
		result = append(result, *toUserDTO(&users[i]))
	}
	return result, total, nil
}

func toUserDTO(user *entities.User) *dto.UserDTO {
	return &dto.UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role.String(),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}
