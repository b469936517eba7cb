package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/utils"
	"delivery-system/pkg/validation"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
)

// WriteMode - режим записи доставки.
type WriteMode int

const (
	// ModeCreate - POST: обязательные поля должны быть переданы.
	ModeCreate WriteMode = iota
	// ModeReplace - PUT: обязательные поля должны быть переданы, отсутствующие необязательные не меняются.
	ModeReplace
	// ModePatch - PATCH: отсутствующие поля не меняются.
	ModePatch
)

// ExistenceSet - какие id справочников существуют: поле ссылки -> id -> есть/нет.
type ExistenceSet map[string]map[uint64]bool

func (e ExistenceSet) Has(refField string, id uint64) bool {
	return e[refField][id]
}

// AttachmentChecker проверяет, что файл уже лежит в хранилище.
type AttachmentChecker interface {
	Exists(path string) bool
}

// DeliveryRules - внешние параметры проверки вложения.
type DeliveryRules struct {
	MediaURL         string
	AttachmentPrefix string
	Files            AttachmentChecker
	// UsedPaths - пути, уже прикрепленные к другим доставкам.
	UsedPaths map[string]bool
}

const (
	transportNumberMaxLength = 100
	distanceMaxLength        = 50
	collectorMaxLength       = 200
)

var fieldValidator = validation.NewEngine()

// requiredFields - поля, без которых доставку нельзя создать или заменить.
var requiredFields = []string{
	dto.FieldTransportModelID, dto.FieldTransportNumber, dto.FieldDispatchDatetime, dto.FieldDeliveryDatetime,
	dto.FieldDistance, dto.FieldStatusID, dto.FieldTechnicalConditionID,
}

func isRequired(field string) bool {
	for _, f := range requiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// checkText прогоняет значение (string или null.String) через правила валидатора
// и возвращает текст ошибки.
func checkText(value interface{}, tag string) string {
	if err := fieldValidator.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return utils.ValidationMessage(verrs[0].Tag(), verrs[0].Param())
		}
		return err.Error()
	}
	return ""
}

// CollectReferencedIDs возвращает id, которые нужно проверить в справочниках.
func CollectReferencedIDs(payload *dto.DeliveryWriteDTO) map[string][]uint64 {
	out := make(map[string][]uint64)
	for _, field := range dto.RefFields() {
		ref := payload.Ref(field)
		if payload.Has(field) && ref.Valid {
			out[field] = append(out[field], ref.Uint64)
		}
	}
	return out
}

// ValidateDelivery проверяет write-форму и собирает итоговую доставку.
// current == nil при создании. При любой ошибке возвращается полный список полей,
// итоговая доставка не возвращается.
func ValidateDelivery(
	payload dto.DeliveryWriteDTO,
	current *entities.Delivery,
	mode WriteMode,
	existing ExistenceSet,
	rules DeliveryRules,
) (*entities.Delivery, *apperrors.ValidationError) {
	verr := apperrors.NewValidationError()

	var result entities.Delivery
	if current != nil {
		result = *current
	}

	// Отсутствующее поле: ошибка для обязательных при создании и замене.
	present := func(field string) bool {
		if payload.Has(field) {
			return true
		}
		if mode != ModePatch && isRequired(field) {
			verr.Add(field, dto.MsgRequired)
		}
		return false
	}

	requiredRef := func(field string, target *uint64) {
		if !present(field) {
			return
		}
		ref := payload.Ref(field)
		if !ref.Valid {
			verr.Add(field, dto.MsgNull)
			return
		}
		if !existing.Has(field, ref.Uint64) {
			verr.Add(field, dto.MsgUnknownPK(ref.Uint64))
			return
		}
		*target = ref.Uint64
	}

	optionalRef := func(field string, target **uint64) {
		if !present(field) {
			return
		}
		ref := payload.Ref(field)
		if !ref.Valid {
			*target = nil
			return
		}
		if !existing.Has(field, ref.Uint64) {
			verr.Add(field, dto.MsgUnknownPK(ref.Uint64))
			return
		}
		id := ref.Uint64
		*target = &id
	}

	text := func(field, tag string, target *string) {
		if !present(field) {
			return
		}
		value := payload.Text(field)
		if !value.Valid {
			verr.Add(field, dto.MsgNull)
			return
		}
		if tag != "" {
			if msg := checkText(*value, tag); msg != "" {
				verr.Add(field, msg)
				return
			}
		}
		*target = value.String
	}

	datetime := func(field string, target *time.Time) {
		if !present(field) {
			return
		}
		value := payload.Text(field)
		if !value.Valid {
			verr.Add(field, dto.MsgNull)
			return
		}
		if msg := checkText(*value, "iso8601"); msg != "" {
			verr.Add(field, msg)
			return
		}
		t, _ := utils.ParseISO8601(value.String)
		// В API время передается с точностью до секунды
		*target = t.Truncate(time.Second)
	}

	requiredRef(dto.FieldTransportModelID, &result.TransportModelID)
	text(dto.FieldTransportNumber, fmt.Sprintf("notblank,max=%d", transportNumberMaxLength), &result.TransportNumber)
	datetime(dto.FieldDispatchDatetime, &result.DispatchDatetime)
	datetime(dto.FieldDeliveryDatetime, &result.DeliveryDatetime)
	text(dto.FieldDistance, fmt.Sprintf("notblank,max=%d", distanceMaxLength), &result.Distance)
	optionalRef(dto.FieldServiceID, &result.ServiceID)
	optionalRef(dto.FieldPackagingID, &result.PackagingID)
	requiredRef(dto.FieldStatusID, &result.StatusID)
	requiredRef(dto.FieldTechnicalConditionID, &result.TechnicalConditionID)
	text(dto.FieldCollector, fmt.Sprintf("max=%d", collectorMaxLength), &result.Collector)
	text(dto.FieldComment, "", &result.Comment)
	optionalRef(dto.FieldCargoTypeID, &result.CargoTypeID)

	// Файл из multipart обрабатывает сервис, здесь - только ссылка на уже загруженный.
	if payload.File == nil && payload.Has(dto.FieldAttachments) {
		path, msg := resolveAttachment(payload.Attachments, current, rules)
		if msg != "" {
			verr.Add(dto.FieldAttachments, msg)
		} else {
			result.Attachments = path
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return &result, nil
}

// AttachmentPath приводит значение поля attachments к пути в хранилище.
// Принимается сам путь или URL, который API отдает в read-форме.
func AttachmentPath(value, mediaURL string) string {
	path := strings.TrimSpace(value)
	if media := strings.TrimSuffix(mediaURL, "/"); media != "" {
		path = strings.TrimPrefix(path, media+"/")
	}
	return strings.TrimPrefix(path, "/")
}

func resolveAttachment(value null.String, current *entities.Delivery, rules DeliveryRules) (*string, string) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, ""
	}
	path := AttachmentPath(value.String, rules.MediaURL)

	if current != nil && current.Attachments != nil && *current.Attachments == path {
		return &path, ""
	}
	if rules.UsedPaths[path] {
		return nil, dto.MsgFileInUse
	}
	if rules.AttachmentPrefix != "" && !strings.HasPrefix(path, strings.TrimSuffix(rules.AttachmentPrefix, "/")+"/") {
		return nil, dto.MsgFileNotFound
	}
	if strings.Contains(path, "..") {
		return nil, dto.MsgFileNotFound
	}
	if rules.Files != nil && !rules.Files.Exists(path) {
		return nil, dto.MsgFileNotFound
	}
	return &path, ""
}
