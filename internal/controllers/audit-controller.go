package controllers

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lab-request-system/internal/dto"
	"lab-request-system/internal/services"
	"lab-request-system/pkg/utils"
)

type AuditController struct {
	auditService services.AuditServiceInterface
	logger       *zap.Logger
}

func NewAuditController(auditService services.AuditServiceInterface, logger *zap.Logger) *AuditController {
	return &AuditController{auditService: auditService, logger: logger}
}

func (ctrl *AuditController) List(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	filter := dto.AuditListFilter{
		Page:       parseIntQuery(c, "page"),
		PageSize:   parseIntQuery(c, "limit"),
		EntityType: c.QueryParam("entity_type"),
		Action:     c.QueryParam("action"),
	}
	if id, ok := parseUint64Query(c, "user_id"); ok {
		filter.UserID = *id
	}
	if id, ok := parseUint64Query(c, "entity_id"); ok {
		filter.EntityID = *id
	}

	entries, total, err := ctrl.auditService.List(c.Request().Context(), userID, filter)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessListResponse(c, entries, "OK", total, filter.Page, filter.PageSize)
}
