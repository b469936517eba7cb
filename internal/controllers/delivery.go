package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	"delivery-system/internal/services"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type DeliveryController struct {
	deliveryService services.DeliveryServiceInterface
	logger          *zap.Logger
}

func NewDeliveryController(deliveryService services.DeliveryServiceInterface, logger *zap.Logger) *DeliveryController {
	return &DeliveryController{deliveryService: deliveryService, logger: logger}
}

// parseFilter читает фильтры списка доставок. Некорректное значение - ошибка по имени параметра.
func (c *DeliveryController) parseFilter(ctx echo.Context) (entities.DeliveryFilter, error) {
	query := ctx.Request().URL.Query()
	filter := entities.DeliveryFilter{Filter: utils.ParseFilterFromQuery(query)}
	verr := apperrors.NewValidationError()

	parseDate := func(name string, upper bool) *time.Time {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			return nil
		}
		t, err := utils.ParseDateBound(raw, upper)
		if err != nil {
			verr.Add(name, "Введите правильную дату.")
			return nil
		}
		return &t
	}
	parseID := func(name string) *uint64 {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			return nil
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			verr.Add(name, "Введите целое число.")
			return nil
		}
		return &id
	}

	filter.DeliveredFrom = parseDate("start_date", false)
	filter.DeliveredTo = parseDate("end_date", true)
	filter.ServiceID = parseID("service")
	filter.StatusID = parseID("status")
	filter.TechnicalConditionID = parseID("technical_condition")

	if verr.HasErrors() {
		return filter, verr
	}
	return filter, nil
}

func (c *DeliveryController) GetDeliveries(ctx echo.Context) error {
	filter, err := c.parseFilter(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	c.logger.Debug("Запрос списка доставок", zap.Any("filter", filter))

	deliveries, total, err := c.deliveryService.GetDeliveries(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, deliveries, "Список доставок успешно получен", http.StatusOK, total)
}

func (c *DeliveryController) FindDelivery(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	delivery, err := c.deliveryService.FindDelivery(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, delivery, "Доставка успешно найдена", http.StatusOK)
}

// readPayload принимает JSON, multipart/form-data (с файлом в attachments) и urlencoded форму.
func (c *DeliveryController) readPayload(ctx echo.Context) (dto.DeliveryWriteDTO, error) {
	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		form, err := ctx.MultipartForm()
		if err != nil {
			return dto.DeliveryWriteDTO{}, apperrors.NewHttpError(http.StatusBadRequest, "Некорректная multipart-форма", err, nil)
		}
		file := firstFile(form.File[dto.FieldAttachments])
		return dto.DecodeDeliveryForm(form.Value, file)
	case strings.HasPrefix(contentType, echo.MIMEApplicationForm):
		values, err := ctx.FormParams()
		if err != nil {
			return dto.DeliveryWriteDTO{}, apperrors.NewHttpError(http.StatusBadRequest, "Некорректная форма", err, nil)
		}
		return dto.DecodeDeliveryForm(values, nil)
	default:
		body, err := io.ReadAll(ctx.Request().Body)
		if err != nil {
			return dto.DeliveryWriteDTO{}, apperrors.NewHttpError(http.StatusBadRequest, "Не удалось прочитать тело запроса", err, nil)
		}
		return dto.DecodeDeliveryJSON(body)
	}
}

func (c *DeliveryController) CreateDelivery(ctx echo.Context) error {
	payload, err := c.readPayload(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	delivery, err := c.deliveryService.CreateDelivery(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, delivery, "Доставка успешно создана", http.StatusCreated)
}

func (c *DeliveryController) updateDelivery(ctx echo.Context, partial bool) error {
	id, err := utils.ParseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	payload, err := c.readPayload(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	delivery, err := c.deliveryService.UpdateDelivery(ctx.Request().Context(), id, payload, partial)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, delivery, "Доставка успешно обновлена", http.StatusOK)
}

func (c *DeliveryController) UpdateDelivery(ctx echo.Context) error { return c.updateDelivery(ctx, false) }

func (c *DeliveryController) PatchDelivery(ctx echo.Context) error { return c.updateDelivery(ctx, true) }

func (c *DeliveryController) DeleteDelivery(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.deliveryService.DeleteDelivery(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return ctx.NoContent(http.StatusNoContent)
}

var exportHeaders = []string{
	"ID", "Модель ТС", "Номер ТС", "Время отправки", "Время доставки", "Дистанция",
	"Услуга", "Упаковка", "Статус", "Тех. состояние", "Тип груза", "Сборщик", "Комментарий", "Файл",
}

func label(item *dto.CatalogItemDTO) string {
	if item == nil {
		return ""
	}
	return item.Label
}

func exportRow(d dto.DeliveryDTO) []interface{} {
	return []interface{}{
		d.ID, label(d.TransportModel), d.TransportNumber, d.DispatchDatetime, d.DeliveryDatetime, d.Distance,
		label(d.Service), label(d.Packaging), label(d.Status), label(d.TechnicalCondition), label(d.CargoType),
		d.Collector, d.Comment, utils.SafeDeref(d.Attachments),
	}
}

// ExportDeliveries выгружает отфильтрованные доставки в xlsx.
func (c *DeliveryController) ExportDeliveries(ctx echo.Context) error {
	filter, err := c.parseFilter(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	deliveries, err := c.deliveryService.ExportDeliveries(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	f, err := buildDeliveryWorkbook(deliveries)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	defer f.Close()

	fileName := fmt.Sprintf("deliveries_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}

func buildDeliveryWorkbook(deliveries []dto.DeliveryDTO) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Доставки"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeaders); err != nil {
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return nil, err
	}

	for i, d := range deliveries {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := exportRow(d)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	for _, w := range exportColumnWidths {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return nil, err
		}
	}
	return f, nil
}

var exportColumnWidths = []struct {
	from, to string
	width    float64
}{
	{"B", "C", 18},
	{"D", "E", 22},
	{"G", "K", 20},
	{"M", "M", 40},
}

func firstFile[T any](files []*T) *T {
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

var errNoFile = errors.New("файл не передан")
