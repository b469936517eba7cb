package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	apperrors "delivery-system/pkg/errors"

	"github.com/aarondl/null/v8"
)

// Имена полей write-формы доставки.
const (
	FieldTransportModelID     = "transport_model_id"
	FieldTransportNumber      = "transport_number"
	FieldDispatchDatetime     = "dispatch_datetime"
	FieldDeliveryDatetime     = "delivery_datetime"
	FieldDistance             = "distance"
	FieldServiceID            = "service_id"
	FieldPackagingID          = "packaging_id"
	FieldStatusID             = "status_id"
	FieldTechnicalConditionID = "technical_condition_id"
	FieldCollector            = "collector"
	FieldComment              = "comment"
	FieldCargoTypeID          = "cargo_type_id"
	FieldAttachments          = "attachments"
)

const (
	MsgRequired      = "Обязательное поле."
	MsgNull          = "Это поле не может быть null."
	MsgBlank         = "Это поле не может быть пустым."
	MsgInvalidString = "Некорректная строка."
	MsgInvalidPK     = "Некорректный тип. Ожидалось значение первичного ключа."
	MsgInvalidDate   = "Неправильный формат datetime. Используйте ISO 8601."
	MsgFileNotFound  = "Файл не найден."
	MsgFileInUse     = "Файл уже прикреплен к другой доставке."
)

// MsgMaxLength - сообщение о превышении длины строки.
func MsgMaxLength(n int) string {
	return fmt.Sprintf("Убедитесь, что это значение содержит не более %d символов.", n)
}

// MsgUnknownPK - ссылка на несуществующую запись справочника.
func MsgUnknownPK(id uint64) string {
	return fmt.Sprintf("Недопустимый первичный ключ \"%d\" - объект не существует.", id)
}

var ErrMalformedBody = apperrors.NewHttpError(http.StatusBadRequest, "Некорректное тело запроса: ожидается JSON-объект", apperrors.ErrBadRequest, nil)

var (
	refFields    = []string{FieldTransportModelID, FieldServiceID, FieldPackagingID, FieldStatusID, FieldTechnicalConditionID, FieldCargoTypeID}
	stringFields = []string{FieldTransportNumber, FieldDispatchDatetime, FieldDeliveryDatetime, FieldDistance, FieldCollector, FieldComment, FieldAttachments}
)

// DeliveryDTO - read-форма доставки: ссылки раскрыты во вложенные объекты.
type DeliveryDTO struct {
	ID                 uint64          `json:"id"`
	TransportModel     *CatalogItemDTO `json:"transport_model"`
	TransportNumber    string          `json:"transport_number"`
	DispatchDatetime   string          `json:"dispatch_datetime"`
	DeliveryDatetime   string          `json:"delivery_datetime"`
	Distance           string          `json:"distance"`
	Service            *CatalogItemDTO `json:"service"`
	Packaging          *CatalogItemDTO `json:"packaging"`
	Status             *CatalogItemDTO `json:"status"`
	TechnicalCondition *CatalogItemDTO `json:"technical_condition"`
	Collector          string          `json:"collector"`
	Comment            string          `json:"comment"`
	CargoType          *CatalogItemDTO `json:"cargo_type"`
	Attachments        *string         `json:"attachments"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

// DeliveryWriteDTO - write-форма доставки: ссылки на справочники передаются id.
// Sent хранит имена полей, которые клиент явно передал.
type DeliveryWriteDTO struct {
	TransportModelID     null.Uint64 `json:"transport_model_id"`
	TransportNumber      null.String `json:"transport_number"`
	DispatchDatetime     null.String `json:"dispatch_datetime"`
	DeliveryDatetime     null.String `json:"delivery_datetime"`
	Distance             null.String `json:"distance"`
	ServiceID            null.Uint64 `json:"service_id"`
	PackagingID          null.Uint64 `json:"packaging_id"`
	StatusID             null.Uint64 `json:"status_id"`
	TechnicalConditionID null.Uint64 `json:"technical_condition_id"`
	Collector            null.String `json:"collector"`
	Comment              null.String `json:"comment"`
	CargoTypeID          null.Uint64 `json:"cargo_type_id"`
	Attachments          null.String `json:"attachments"`

	Sent map[string]bool       `json:"-"`
	File *multipart.FileHeader `json:"-"`
}

// Has сообщает, передавалось ли поле.
func (d *DeliveryWriteDTO) Has(field string) bool {
	return d.Sent[field]
}

// Ref возвращает ссылочное поле по имени.
func (d *DeliveryWriteDTO) Ref(field string) *null.Uint64 {
	switch field {
	case FieldTransportModelID:
		return &d.TransportModelID
	case FieldServiceID:
		return &d.ServiceID
	case FieldPackagingID:
		return &d.PackagingID
	case FieldStatusID:
		return &d.StatusID
	case FieldTechnicalConditionID:
		return &d.TechnicalConditionID
	case FieldCargoTypeID:
		return &d.CargoTypeID
	}
	return nil
}

// Text возвращает строковое поле по имени.
func (d *DeliveryWriteDTO) Text(field string) *null.String {
	switch field {
	case FieldTransportNumber:
		return &d.TransportNumber
	case FieldDispatchDatetime:
		return &d.DispatchDatetime
	case FieldDeliveryDatetime:
		return &d.DeliveryDatetime
	case FieldDistance:
		return &d.Distance
	case FieldCollector:
		return &d.Collector
	case FieldComment:
		return &d.Comment
	case FieldAttachments:
		return &d.Attachments
	}
	return nil
}

// RefFields - имена ссылочных полей write-формы.
func RefFields() []string { return append([]string(nil), refFields...) }

func (d *DeliveryWriteDTO) mark(field string) {
	if d.Sent == nil {
		d.Sent = make(map[string]bool)
	}
	d.Sent[field] = true
}

// DecodeDeliveryJSON разбирает JSON-тело. Ошибки типов собираются по полям,
// read-only поля (id, created_at, updated_at) и неизвестные ключи игнорируются.
func DecodeDeliveryJSON(body []byte) (DeliveryWriteDTO, error) {
	payload := DeliveryWriteDTO{Sent: make(map[string]bool)}
	raw, err := decodeObject(body)
	if err != nil {
		return payload, err
	}

	verr := apperrors.NewValidationError()
	for _, field := range refFields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		payload.mark(field)
		if isNull(value) {
			continue
		}
		id, ok := decodeID(value)
		if !ok {
			verr.Add(field, MsgInvalidPK)
			continue
		}
		*payload.Ref(field) = null.Uint64From(id)
	}
	for _, field := range stringFields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		payload.mark(field)
		if isNull(value) {
			continue
		}
		s, ok := decodeString(value)
		if !ok {
			verr.Add(field, MsgInvalidString)
			continue
		}
		*payload.Text(field) = null.StringFrom(s)
	}

	if verr.HasErrors() {
		return payload, verr
	}
	return payload, nil
}

// DecodeDeliveryForm разбирает multipart/form-data или urlencoded форму.
// Пустая строка в ссылочном поле означает null. Файл из поля attachments
// имеет приоритет над текстовым значением.
func DecodeDeliveryForm(values map[string][]string, file *multipart.FileHeader) (DeliveryWriteDTO, error) {
	payload := DeliveryWriteDTO{Sent: make(map[string]bool)}
	verr := apperrors.NewValidationError()

	for _, field := range refFields {
		list, ok := values[field]
		if !ok || len(list) == 0 {
			continue
		}
		payload.mark(field)
		value := strings.TrimSpace(list[0])
		if value == "" || value == "null" {
			continue
		}
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			verr.Add(field, MsgInvalidPK)
			continue
		}
		*payload.Ref(field) = null.Uint64From(id)
	}
	for _, field := range stringFields {
		list, ok := values[field]
		if !ok || len(list) == 0 {
			continue
		}
		payload.mark(field)
		if field == FieldAttachments && (list[0] == "" || list[0] == "null") {
			continue
		}
		*payload.Text(field) = null.StringFrom(list[0])
	}

	if file != nil {
		payload.mark(FieldAttachments)
		payload.File = file
		payload.Attachments = null.String{}
	}

	if verr.HasErrors() {
		return payload, verr
	}
	return payload, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// decodeID принимает целое число или строку из цифр.
func decodeID(value json.RawMessage) (uint64, bool) {
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		id, err := strconv.ParseUint(n.String(), 10, 64)
		return id, err == nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		return id, err == nil
	}
	return 0, false
}

// decodeString принимает строку или число, как и текстовые поля форм.
func decodeString(value json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// UploadedFileDTO - ответ на отдельную загрузку файла.
type UploadedFileDTO struct {
	FileURL  string `json:"file_url"`
	FilePath string `json:"file_path"`
}
