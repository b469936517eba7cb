package controllers

import (
	"io"
	"net/http"

	"delivery-system/internal/dto"
	"delivery-system/internal/services"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CatalogController обслуживает любой справочник: набор ручек одинаков,
// отличаются таблица и поле-подпись.
type CatalogController struct {
	catalogService services.CatalogServiceInterface
	logger         *zap.Logger
}

func NewCatalogController(catalogService services.CatalogServiceInterface, logger *zap.Logger) *CatalogController {
	return &CatalogController{catalogService: catalogService, logger: logger}
}

func (c *CatalogController) GetItems(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())

	items, total, err := c.catalogService.GetItems(reqCtx, filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, items, "Справочник успешно получен", http.StatusOK, total)
}

func (c *CatalogController) FindItem(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	item, err := c.catalogService.FindItem(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, item, "Запись справочника найдена", http.StatusOK)
}

func (c *CatalogController) readPayload(ctx echo.Context) (dto.CatalogPayloadDTO, error) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return dto.CatalogPayloadDTO{}, apperrors.NewHttpError(http.StatusBadRequest, "Не удалось прочитать тело запроса", err, nil)
	}
	return dto.DecodeCatalogPayload(body, c.catalogService.Catalog().LabelField)
}

func (c *CatalogController) CreateItem(ctx echo.Context) error {
	payload, err := c.readPayload(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	item, err := c.catalogService.CreateItem(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, item, "Запись справочника создана", http.StatusCreated)
}

func (c *CatalogController) updateItem(ctx echo.Context, partial bool) error {
	id, err := utils.ParseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	payload, err := c.readPayload(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	item, err := c.catalogService.UpdateItem(ctx.Request().Context(), id, payload, partial)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, item, "Запись справочника обновлена", http.StatusOK)
}

func (c *CatalogController) UpdateItem(ctx echo.Context) error { return c.updateItem(ctx, false) }

func (c *CatalogController) PatchItem(ctx echo.Context) error { return c.updateItem(ctx, true) }

func (c *CatalogController) DeleteItem(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.catalogService.DeleteItem(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return ctx.NoContent(http.StatusNoContent)
}
