package controllers

import (
	"net/http"

	"delivery-system/internal/services"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type UploadController struct {
	deliveryService services.DeliveryServiceInterface
	logger          *zap.Logger
}

func NewUploadController(deliveryService services.DeliveryServiceInterface, logger *zap.Logger) *UploadController {
	return &UploadController{deliveryService: deliveryService, logger: logger}
}

// Upload принимает файл в поле file (или attachments) и возвращает его путь и URL.
func (ctrl *UploadController) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader, err = c.FormFile("attachments")
	}
	if err != nil {
		return utils.ErrorResponse(c,
			apperrors.NewHttpError(
				http.StatusBadRequest,
				"Файл не был передан",
				errNoFile,
				nil,
			),
			ctrl.logger,
		)
	}

	uploaded, err := ctrl.deliveryService.UploadAttachment(c.Request().Context(), fileHeader)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, uploaded, "Файл успешно загружен", http.StatusCreated)
}
