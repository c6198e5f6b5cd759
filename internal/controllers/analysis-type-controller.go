package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lab-request-system/internal/dto"
	"lab-request-system/internal/services"
	apperrors "lab-request-system/pkg/errors"
	"lab-request-system/pkg/utils"
)

type AnalysisTypeController struct {
	typeService services.AnalysisTypeServiceInterface
	logger      *zap.Logger
}

func NewAnalysisTypeController(typeService services.AnalysisTypeServiceInterface, logger *zap.Logger) *AnalysisTypeController {
	return &AnalysisTypeController{typeService: typeService, logger: logger}
}

func (ctrl *AnalysisTypeController) ListActive(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	types, err := ctrl.typeService.ListActive(c.Request().Context(), userID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, types, "OK", http.StatusOK)
}

func (ctrl *AnalysisTypeController) List(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	types, err := ctrl.typeService.List(c.Request().Context(), userID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, types, "OK", http.StatusOK)
}

func (ctrl *AnalysisTypeController) Create(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	var payload dto.CreateAnalysisTypeDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewValidationError("invalid request body"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	created, err := ctrl.typeService.Create(c.Request().Context(), userID, payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, created, "Analysis type created", http.StatusCreated)
}

func (ctrl *AnalysisTypeController) Update(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	var payload dto.UpdateAnalysisTypeDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewValidationError("invalid request body"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.typeService.Update(c.Request().Context(), userID, id, payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Analysis type updated", http.StatusOK)
}
