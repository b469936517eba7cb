package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"delivery-system/internal/entities"
	"delivery-system/internal/repositories"
	"delivery-system/internal/routes"
	"delivery-system/pkg/config"
	"delivery-system/pkg/database/migrations"
	"delivery-system/pkg/database/postgresql"
	"delivery-system/pkg/filestorage"
	applogger "delivery-system/pkg/logger"
	"delivery-system/pkg/middleware"
	"delivery-system/pkg/validation"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.MigrateOnStart {
		if err := migrations.Up(ctx, cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("не удалось применить миграции", zap.Error(err))
		}
	}

	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	cacheRepo := repositories.NewNoopCacheRepository()
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logger.Warn("Redis недоступен, кеш справочников отключен", zap.Error(err), zap.String("address", cfg.Redis.Address))
		} else {
			cacheRepo = repositories.NewRedisCacheRepository(redisClient)
		}
	}

	fileStorage, err := filestorage.NewLocalFileStorage(cfg.Storage.UploadDir)
	if err != nil {
		logger.Fatal("не удалось создать файловое хранилище", zap.Error(err))
	}

	catalogRepos := make([]repositories.CatalogRepositoryInterface, 0, len(entities.Catalogs()))
	for _, catalog := range entities.Catalogs() {
		catalogRepos = append(catalogRepos, repositories.NewCatalogRepository(dbConn, catalog, logger))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	e.Use(middleware.Recover(logger))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.InjectLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
	}))

	absPath, err := filepath.Abs(cfg.Storage.UploadDir)
	if err != nil {
		logger.Fatal("не удалось получить абсолютный путь к каталогу загрузок", zap.Error(err))
	}
	e.Static(cfg.Storage.MediaURL, absPath)

	routes.InitRouter(e, routes.Deps{
		TxManager:   repositories.NewTxManager(dbConn),
		Deliveries:  repositories.NewDeliveryRepository(dbConn, logger),
		Catalogs:    catalogRepos,
		Cache:       cacheRepo,
		FileStorage: fileStorage,
		DB:          dbConn,
		Config:      cfg,
		Logger:      logger,
	})

	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка остановки сервера", zap.Error(err))
	}
	logger.Info("Сервер остановлен")
}
