package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
	"lab-request-system/pkg/service"
	"lab-request-system/pkg/utils"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, payload dto.LoginDTO) (*dto.TokenResponseDTO, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponseDTO, error)
	Logout(ctx context.Context, userID uint64) error
}

type authService struct {
	userRepo   repositories.UserRepositoryInterface
	auditRepo  repositories.AuditRepositoryInterface
	txManager  repositories.TxManagerInterface
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthService(
	userRepo repositories.UserRepositoryInterface,
	auditRepo repositories.AuditRepositoryInterface,
	txManager repositories.TxManagerInterface,
	jwtService service.JWTService,
	logger *zap.Logger,
) AuthServiceInterface {
	return &authService{
		userRepo:   userRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		jwtService: jwtService,
		logger:     logger,
	}
}

func (s *authService) Login(ctx context.Context, payload dto.LoginDTO) (*dto.TokenResponseDTO, error) {
	user, err := s.userRepo.FindByUsername(ctx, payload.Username)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := utils.CheckPassword(user.PasswordHash, payload.Password); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountInactive
	}

	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     user.ID,
			Action:     constants.ActionLogin,
			EntityType: constants.EntityUser,
			EntityID:   nullUint64(user.ID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.Uint64("user_id", user.ID), zap.String("username", user.Username))
	return tokens, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponseDTO, error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefreshToken {
		return nil, apperrors.ErrTokenIsNotRefresh
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountInactive
	}

	return s.issueTokens(user.ID)
}

func (s *authService) Logout(ctx context.Context, userID uint64) error {
	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     userID,
			Action:     constants.ActionLogout,
			EntityType: constants.EntityUser,
			EntityID:   nullUint64(userID),
		})
	})
}

func (s *authService) issueTokens(userID uint64) (*dto.TokenResponseDTO, error) {
	accessToken, refreshToken, err := s.jwtService.GenerateTokens(userID)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponseDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtService.GetAccessTokenTTL().Seconds()),
	}, nil
}
