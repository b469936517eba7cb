package seeders

import "delivery-system/internal/entities"

// catalogsData - значения справочников по умолчанию, код справочника -> подписи.
var catalogsData = map[string][]string{
	entities.DeliveryStatusCatalog.Code: {"В ожидании", "Доставлен"},
	entities.TechStatusCatalog.Code:     {"Исправно", "Неисправно", "На ремонте"},
	entities.TransportModelCatalog.Code: {"DX-100", "DX-200", "RX-300"},
	entities.ServiceCatalog.Code:        {"До клиента", "Хрупкий груз"},
	entities.PackagingTypeCatalog.Code:  {"Пакет до 1 кг"},
	entities.CargoTypeCatalog.Code:      {"Хрупкий груз"},
}
