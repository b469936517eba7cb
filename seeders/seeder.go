package seeders

import (
	"context"
	"fmt"

	"delivery-system/internal/repositories"
	"delivery-system/pkg/types"

	"go.uber.org/zap"
)

// SeedCatalogs наполняет справочники значениями по умолчанию.
// Уже существующие подписи пропускаются, поэтому повторный запуск ничего не дублирует.
func SeedCatalogs(ctx context.Context, txManager repositories.TxManagerInterface, repos []repositories.CatalogRepositoryInterface, logger *zap.Logger) error {
	logger.Info("▶️  Запуск наполнения справочников...")

	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, repo := range repos {
			catalog := repo.Catalog()
			labels := catalogsData[catalog.Code]
			if len(labels) == 0 {
				continue
			}

			items, _, err := repo.GetItems(ctx, types.Filter{})
			if err != nil {
				return fmt.Errorf("справочник %s: %w", catalog.Table, err)
			}
			existing := make(map[string]bool, len(items))
			for _, item := range items {
				existing[item.Label] = true
			}

			inserted := 0
			for _, label := range labels {
				if existing[label] {
					continue
				}
				if _, err := repo.CreateItem(ctx, label); err != nil {
					return fmt.Errorf("справочник %s, значение %q: %w", catalog.Table, label, err)
				}
				existing[label] = true
				inserted++
			}
			logger.Info("  - справочник заполнен",
				zap.String("table", catalog.Table),
				zap.Int("inserted", inserted),
				zap.Int("skipped", len(labels)-inserted),
			)
		}
		logger.Info("✅ Наполнение справочников завершено!")
		return nil
	})
}
