package services

import (
	"strings"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	"delivery-system/pkg/utils"

	"github.com/aarondl/null/v8"
)

// Operation - вид операции над ресурсом.
type Operation int

const (
	OpList Operation = iota
	OpRetrieve
	OpCreate
	OpUpdate
	OpPartialUpdate
	OpDelete
)

// Shape - форма сериализации доставки.
type Shape int

const (
	ReadShape Shape = iota
	WriteShape
)

// SelectShape выбирает форму по виду операции. Запись принимает write-форму,
// все остальное (и ответ после записи) отдается в read-форме.
func SelectShape(op Operation) Shape {
	switch op {
	case OpCreate, OpUpdate, OpPartialUpdate:
		return WriteShape
	default:
		return ReadShape
	}
}

func catalogItemDTO(item *entities.CatalogItem, c entities.Catalog) *dto.CatalogItemDTO {
	if item == nil {
		return nil
	}
	return &dto.CatalogItemDTO{ID: item.ID, Label: item.Label, LabelField: c.LabelField}
}

// AttachmentURL склеивает MEDIA_URL и путь файла в хранилище.
func AttachmentURL(mediaURL string, path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	url := strings.TrimSuffix(mediaURL, "/") + "/" + strings.TrimPrefix(*path, "/")
	return &url
}

// ToReadShape раскрывает ссылки доставки во вложенные объекты.
func ToReadShape(d *entities.Delivery, mediaURL string) dto.DeliveryDTO {
	return dto.DeliveryDTO{
		ID:                 d.ID,
		TransportModel:     catalogItemDTO(d.TransportModel, entities.TransportModelCatalog),
		TransportNumber:    d.TransportNumber,
		DispatchDatetime:   utils.FormatAPITime(d.DispatchDatetime),
		DeliveryDatetime:   utils.FormatAPITime(d.DeliveryDatetime),
		Distance:           d.Distance,
		Service:            catalogItemDTO(d.Service, entities.ServiceCatalog),
		Packaging:          catalogItemDTO(d.Packaging, entities.PackagingTypeCatalog),
		Status:             catalogItemDTO(d.Status, entities.DeliveryStatusCatalog),
		TechnicalCondition: catalogItemDTO(d.TechnicalCondition, entities.TechStatusCatalog),
		Collector:          d.Collector,
		Comment:            d.Comment,
		CargoType:          catalogItemDTO(d.CargoType, entities.CargoTypeCatalog),
		Attachments:        AttachmentURL(mediaURL, d.Attachments),
		CreatedAt:          utils.FormatAPITime(d.CreatedAt),
		UpdatedAt:          utils.FormatAPITime(d.UpdatedAt),
	}
}

// ToWriteShape переводит доставку в write-форму: ссылки заменяются их id,
// вложение - путем в хранилище. Все поля помечены как переданные.
func ToWriteShape(d *entities.Delivery) dto.DeliveryWriteDTO {
	out := dto.DeliveryWriteDTO{
		TransportModelID:     null.Uint64From(d.TransportModelID),
		TransportNumber:      null.StringFrom(d.TransportNumber),
		DispatchDatetime:     null.StringFrom(utils.FormatAPITime(d.DispatchDatetime)),
		DeliveryDatetime:     null.StringFrom(utils.FormatAPITime(d.DeliveryDatetime)),
		Distance:             null.StringFrom(d.Distance),
		ServiceID:            null.Uint64FromPtr(d.ServiceID),
		PackagingID:          null.Uint64FromPtr(d.PackagingID),
		StatusID:             null.Uint64From(d.StatusID),
		TechnicalConditionID: null.Uint64From(d.TechnicalConditionID),
		Collector:            null.StringFrom(d.Collector),
		Comment:              null.StringFrom(d.Comment),
		CargoTypeID:          null.Uint64FromPtr(d.CargoTypeID),
		Attachments:          null.StringFromPtr(d.Attachments),
		Sent:                 make(map[string]bool),
	}
	for _, f := range []string{
		dto.FieldTransportModelID, dto.FieldTransportNumber, dto.FieldDispatchDatetime, dto.FieldDeliveryDatetime,
		dto.FieldDistance, dto.FieldServiceID, dto.FieldPackagingID, dto.FieldStatusID, dto.FieldTechnicalConditionID,
		dto.FieldCollector, dto.FieldComment, dto.FieldCargoTypeID, dto.FieldAttachments,
	} {
		out.Sent[f] = true
	}
	return out
}
