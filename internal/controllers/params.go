package controllers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "lab-request-system/pkg/errors"
)

func parseIDParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid %s parameter", name)
	}
	return id, nil
}

func parseIntQuery(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}

func parseUint64Query(c echo.Context, name string) (*uint64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, false
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
