package entities

import (
	"time"

	"delivery-system/pkg/types"
)

type Delivery struct {
	ID                   uint64
	TransportModelID     uint64
	TransportNumber      string
	DispatchDatetime     time.Time
	DeliveryDatetime     time.Time
	Distance             string
	ServiceID            *uint64
	PackagingID          *uint64
	StatusID             uint64
	TechnicalConditionID uint64
	Collector            string
	Comment              string
	CargoTypeID          *uint64
	Attachments          *string // путь в файловом хранилище
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Заполняются при чтении
	TransportModel     *CatalogItem
	Service            *CatalogItem
	Packaging          *CatalogItem
	Status             *CatalogItem
	TechnicalCondition *CatalogItem
	CargoType          *CatalogItem
}

// RefID возвращает значение ссылки на справочник по полю write-формы.
func (d *Delivery) RefID(refField string) *uint64 {
	switch refField {
	case TransportModelCatalog.RefField:
		return &d.TransportModelID
	case DeliveryStatusCatalog.RefField:
		return &d.StatusID
	case TechStatusCatalog.RefField:
		return &d.TechnicalConditionID
	case ServiceCatalog.RefField:
		return d.ServiceID
	case PackagingTypeCatalog.RefField:
		return d.PackagingID
	case CargoTypeCatalog.RefField:
		return d.CargoTypeID
	}
	return nil
}

// DeliveryFilter - условия выборки доставок. Все условия объединяются через AND.
type DeliveryFilter struct {
	types.Filter

	DeliveredFrom        *time.Time // delivery_datetime >=
	DeliveredTo          *time.Time // delivery_datetime <=
	ServiceID            *uint64
	StatusID             *uint64
	TechnicalConditionID *uint64
}
