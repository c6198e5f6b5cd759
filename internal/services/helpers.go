package services

import (
	"context"

	"github.com/aarondl/null/v8"

	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/config"
	apperrors "lab-request-system/pkg/errors"
)

// loadActor resolves the authenticated user id into a full user row. An
// unknown or deactivated id means the token outlived the account.
func loadActor(ctx context.Context, userRepo repositories.UserRepositoryInterface, userID uint64) (*entities.User, error) {
	actor, err := userRepo.FindByID(ctx, userID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.ErrInvalidUserID
		}
		return nil, err
	}
	if !actor.IsActive {
		return nil, apperrors.ErrAccountInactive
	}
	return actor, nil
}

func nullUint64(v uint64) null.Uint64 {
	return null.Uint64From(v)
}

// normalizePage clamps page and pageSize to the configured bounds.
func normalizePage(page, pageSize int, cfg config.ListConfig) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = cfg.DefaultPageSize
	}
	if pageSize > cfg.MaxPageSize {
		pageSize = cfg.MaxPageSize
	}
	return page, pageSize
}
