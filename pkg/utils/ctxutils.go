package utils

import (
	"context"

	"lab-request-system/pkg/contextkeys"
	apperrors "lab-request-system/pkg/errors"
)

func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return 0, apperrors.ErrInvalidUserID
	}
	return userID, nil
}
