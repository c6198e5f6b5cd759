package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lab-request-system/internal/services"
	apperrors "lab-request-system/pkg/errors"
	"lab-request-system/pkg/utils"
)

type AttachmentController struct {
	attachmentService services.AttachmentServiceInterface
	logger            *zap.Logger
}

func NewAttachmentController(attachmentService services.AttachmentServiceInterface, logger *zap.Logger) *AttachmentController {
	return &AttachmentController{attachmentService: attachmentService, logger: logger}
}

func (ctrl *AttachmentController) Upload(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, apperrors.NewValidationError("file field is required"), ctrl.logger)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(c, apperrors.NewStorageError("failed to read uploaded file", err), ctrl.logger)
	}
	defer src.Close()

	result, err := ctrl.attachmentService.Upload(
		c.Request().Context(), userID, requestID, fileHeader.Filename, fileHeader.Size, src)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, result, "File uploaded", http.StatusCreated)
}

func (ctrl *AttachmentController) Download(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	fileID, err := parseIDParam(c, "fileId")
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	absPath, fileName, err := ctrl.attachmentService.Download(c.Request().Context(), userID, fileID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return c.Attachment(absPath, fileName)
}

func (ctrl *AttachmentController) List(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	files, err := ctrl.attachmentService.List(c.Request().Context(), userID, requestID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, files, "OK", http.StatusOK)
}

func (ctrl *AttachmentController) Delete(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	fileID, err := parseIDParam(c, "fileId")
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.attachmentService.Delete(c.Request().Context(), userID, fileID); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "File deleted", http.StatusOK)
}
