package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"delivery-system/internal/controllers"
	"delivery-system/internal/repositories"
	"delivery-system/internal/services"
	"delivery-system/pkg/config"
	"delivery-system/pkg/filestorage"
)

// Deps - все, что нужно роутеру. Хранилище подставляется снаружи:
// PostgreSQL в приложении, память в тестах.
type Deps struct {
	TxManager   repositories.TxManagerInterface
	Deliveries  repositories.DeliveryRepositoryInterface
	Catalogs    []repositories.CatalogRepositoryInterface
	Cache       repositories.CacheRepositoryInterface
	FileStorage filestorage.FileStorageInterface
	DB          controllers.Pinger
	Config      *config.Config
	Logger      *zap.Logger
	Clock       func() time.Time
}

func InitRouter(e *echo.Echo, deps Deps) {
	deps.Logger.Info("InitRouter: Начало создания маршрутов")

	e.Pre(echomw.RemoveTrailingSlash())
	api := e.Group("/api")

	deliveryService := services.NewDeliveryService(
		deps.Deliveries, deps.Catalogs, deps.TxManager, deps.FileStorage, deps.Config.Storage.MediaURL, deps.Logger,
	)
	if deps.Clock != nil {
		deliveryService.WithClock(deps.Clock)
	}

	for _, repo := range deps.Catalogs {
		catalogService := services.NewCatalogService(
			repo, deps.Deliveries, deps.TxManager, deps.Cache,
			deps.Config.Redis.CacheTTL, deps.Config.Catalog.LabelMaxLength, deps.Logger,
		)
		runCatalogRouter(api, repo.Catalog().Code, controllers.NewCatalogController(catalogService, deps.Logger))
	}

	runDeliveryRouter(api, controllers.NewDeliveryController(deliveryService, deps.Logger))
	runUploadRouter(api, controllers.NewUploadController(deliveryService, deps.Logger))
	api.GET("/health", controllers.NewHealthController(deps.DB, deps.Logger).Health)

	deps.Logger.Info("INIT_ROUTER: Создание маршрутов завершено")
}
