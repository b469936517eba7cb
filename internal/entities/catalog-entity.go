package entities

// DeletePolicy - что происходит с доставками при удалении записи справочника.
type DeletePolicy int

const (
	// DeleteProtect запрещает удаление, пока на запись ссылается хотя бы одна доставка.
	DeleteProtect DeletePolicy = iota
	// DeleteSetNull разрешает удаление и обнуляет ссылку в доставках.
	DeleteSetNull
)

// Catalog описывает справочник: таблицу, поле-подпись и ссылку на него из доставки.
type Catalog struct {
	Code       string // сегмент URL
	Table      string
	LabelField string // "name" или "number"
	RefField   string // поле write-формы доставки
	Required   bool   // обязательна ли ссылка в доставке
	OnDelete   DeletePolicy
	Title      string
}

var (
	TransportModelCatalog = Catalog{
		Code: "transport-models", Table: "transport_models", LabelField: "number",
		RefField: "transport_model_id", Required: true, OnDelete: DeleteProtect,
		Title: "Модель транспорта",
	}
	DeliveryStatusCatalog = Catalog{
		Code: "delivery-statuses", Table: "delivery_statuses", LabelField: "name",
		RefField: "status_id", Required: true, OnDelete: DeleteProtect,
		Title: "Статус доставки",
	}
	TechStatusCatalog = Catalog{
		Code: "tech-statuses", Table: "tech_statuses", LabelField: "name",
		RefField: "technical_condition_id", Required: true, OnDelete: DeleteProtect,
		Title: "Техническое состояние",
	}
	ServiceCatalog = Catalog{
		Code: "services", Table: "services", LabelField: "name",
		RefField: "service_id", OnDelete: DeleteSetNull,
		Title: "Услуга",
	}
	PackagingTypeCatalog = Catalog{
		Code: "packaging-types", Table: "packaging_types", LabelField: "name",
		RefField: "packaging_id", OnDelete: DeleteSetNull,
		Title: "Тип упаковки",
	}
	CargoTypeCatalog = Catalog{
		Code: "cargo-types", Table: "cargo_types", LabelField: "name",
		RefField: "cargo_type_id", OnDelete: DeleteSetNull,
		Title: "Тип груза",
	}
)

// Catalogs возвращает все справочники в порядке регистрации маршрутов.
func Catalogs() []Catalog {
	return []Catalog{
		TechStatusCatalog,
		PackagingTypeCatalog,
		ServiceCatalog,
		DeliveryStatusCatalog,
		CargoTypeCatalog,
		TransportModelCatalog,
	}
}

// CatalogItem - строка справочника. Label хранит name или number.
type CatalogItem struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

// CatalogByCode ищет справочник по сегменту URL.
func CatalogByCode(code string) (Catalog, bool) {
	for _, c := range Catalogs() {
		if c.Code == code {
			return c, true
		}
	}
	return Catalog{}, false
}

// CatalogByRefField ищет справочник по полю ссылки в доставке.
func CatalogByRefField(refField string) (Catalog, bool) {
	for _, c := range Catalogs() {
		if c.RefField == refField {
			return c, true
		}
	}
	return Catalog{}, false
}
