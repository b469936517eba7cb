package main

import (
	"context"
	"flag"
	"log"

	"delivery-system/internal/entities"
	"delivery-system/internal/repositories"
	"delivery-system/pkg/config"
	"delivery-system/pkg/database/migrations"
	"delivery-system/pkg/database/postgresql"
	applogger "delivery-system/pkg/logger"
	"delivery-system/seeders"

	"go.uber.org/zap"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runCatalogs := flag.Bool("catalogs", false, "Наполнить справочники (статусы, модели транспорта и т.д.)")
	runMigrate := flag.Bool("migrate", false, "Перед наполнением применить миграции")
	runAll := flag.Bool("all", false, "Применить миграции и наполнить справочники")
	flag.Parse()

	if !*runCatalogs && !*runMigrate && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -catalogs")
		log.Println("  go run ./seeders/cmd/seed -all")
		return
	}

	ctx := context.Background()
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	if *runAll || *runMigrate {
		if err := migrations.Up(ctx, cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("❌ Ошибка применения миграций", zap.Error(err))
		}
	}

	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("❌ Ошибка подключения к БД", zap.Error(err))
	}
	defer dbPool.Close()

	if *runAll || *runCatalogs {
		repos := make([]repositories.CatalogRepositoryInterface, 0)
		for _, catalog := range entities.Catalogs() {
			repos = append(repos, repositories.NewCatalogRepository(dbPool, catalog, logger))
		}
		if err := seeders.SeedCatalogs(ctx, repositories.NewTxManager(dbPool), repos, logger); err != nil {
			logger.Fatal("❌ Ошибка наполнения справочников", zap.Error(err))
		}
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
