package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	"delivery-system/internal/repositories"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/types"

	"go.uber.org/zap"
)

type CatalogServiceInterface interface {
	Catalog() entities.Catalog
	GetItems(ctx context.Context, filter types.Filter) ([]dto.CatalogItemDTO, uint64, error)
	FindItem(ctx context.Context, id uint64) (*dto.CatalogItemDTO, error)
	CreateItem(ctx context.Context, payload dto.CatalogPayloadDTO) (*dto.CatalogItemDTO, error)
	UpdateItem(ctx context.Context, id uint64, payload dto.CatalogPayloadDTO, partial bool) (*dto.CatalogItemDTO, error)
	DeleteItem(ctx context.Context, id uint64) error
}

type CatalogService struct {
	repo           repositories.CatalogRepositoryInterface
	deliveryRepo   repositories.DeliveryRepositoryInterface
	txManager      repositories.TxManagerInterface
	cache          repositories.CacheRepositoryInterface
	cacheTTL       time.Duration
	labelMaxLength int
	logger         *zap.Logger
}

func NewCatalogService(
	repo repositories.CatalogRepositoryInterface,
	deliveryRepo repositories.DeliveryRepositoryInterface,
	txManager repositories.TxManagerInterface,
	cache repositories.CacheRepositoryInterface,
	cacheTTL time.Duration,
	labelMaxLength int,
	logger *zap.Logger,
) CatalogServiceInterface {
	if cache == nil {
		cache = repositories.NewNoopCacheRepository()
	}
	return &CatalogService{
		repo:           repo,
		deliveryRepo:   deliveryRepo,
		txManager:      txManager,
		cache:          cache,
		cacheTTL:       cacheTTL,
		labelMaxLength: labelMaxLength,
		logger:         logger,
	}
}

func (s *CatalogService) Catalog() entities.Catalog { return s.repo.Catalog() }

func (s *CatalogService) cacheKey() string {
	return "catalog:" + s.repo.Catalog().Code + ":list"
}

func (s *CatalogService) toDTO(item entities.CatalogItem) dto.CatalogItemDTO {
	return dto.CatalogItemDTO{ID: item.ID, Label: item.Label, LabelField: s.repo.Catalog().LabelField}
}

func (s *CatalogService) toDTOs(items []entities.CatalogItem) []dto.CatalogItemDTO {
	out := make([]dto.CatalogItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, s.toDTO(item))
	}
	return out
}

// GetItems отдает список. Полный список без поиска и пагинации берется из кеша.
func (s *CatalogService) GetItems(ctx context.Context, filter types.Filter) ([]dto.CatalogItemDTO, uint64, error) {
	cacheable := filter.Search == "" && !filter.WithPagination
	if cacheable {
		if cached, err := s.cache.Get(ctx, s.cacheKey()); err == nil {
			var items []entities.CatalogItem
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return s.toDTOs(items), uint64(len(items)), nil
			}
			s.logger.Warn("битая запись в кеше справочника", zap.String("key", s.cacheKey()))
		} else if !errors.Is(err, repositories.ErrCacheMiss) {
			s.logger.Warn("кеш справочников недоступен", zap.Error(err))
		}
	}

	items, total, err := s.repo.GetItems(ctx, filter)
	if err != nil {
		s.logger.Error("не удалось получить список справочника",
			zap.String("catalog", s.repo.Catalog().Code), zap.Error(err))
		return nil, 0, err
	}

	if cacheable {
		if data, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, s.cacheKey(), data, s.cacheTTL); err != nil {
				s.logger.Warn("не удалось записать справочник в кеш", zap.Error(err))
			}
		}
	}
	return s.toDTOs(items), total, nil
}

func (s *CatalogService) FindItem(ctx context.Context, id uint64) (*dto.CatalogItemDTO, error) {
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		return nil, err
	}
	result := s.toDTO(*item)
	return &result, nil
}

// validateLabel проверяет подпись записи. Имя поля ошибки - name или number.
func (s *CatalogService) validateLabel(label *string) (string, error) {
	field := s.repo.Catalog().LabelField
	if label == nil {
		return "", apperrors.FieldError(field, dto.MsgRequired)
	}
	if msg := checkText(*label, fmt.Sprintf("notblank,max=%d", s.labelMaxLength)); msg != "" {
		return "", apperrors.FieldError(field, msg)
	}
	return *label, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, s.cacheKey()); err != nil {
		s.logger.Warn("не удалось сбросить кеш справочника", zap.String("key", s.cacheKey()), zap.Error(err))
	}
}

func (s *CatalogService) CreateItem(ctx context.Context, payload dto.CatalogPayloadDTO) (*dto.CatalogItemDTO, error) {
	label, err := s.validateLabel(payload.Label)
	if err != nil {
		return nil, err
	}

	var created *entities.CatalogItem
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		created, txErr = s.repo.CreateItem(ctx, label)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.Info("создана запись справочника",
		zap.String("catalog", s.repo.Catalog().Code), zap.Uint64("id", created.ID))
	result := s.toDTO(*created)
	return &result, nil
}

// UpdateItem: PUT требует подпись, PATCH без подписи ничего не меняет.
func (s *CatalogService) UpdateItem(ctx context.Context, id uint64, payload dto.CatalogPayloadDTO, partial bool) (*dto.CatalogItemDTO, error) {
	if partial && payload.Label == nil {
		return s.FindItem(ctx, id)
	}
	if _, err := s.repo.FindItem(ctx, id); err != nil {
		return nil, err
	}
	label, err := s.validateLabel(payload.Label)
	if err != nil {
		return nil, err
	}

	var updated *entities.CatalogItem
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		updated, txErr = s.repo.UpdateItem(ctx, id, label)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	result := s.toDTO(*updated)
	return &result, nil
}

// DeleteItem применяет политику удаления справочника: запрет при наличии ссылок
// или обнуление ссылок в доставках.
func (s *CatalogService) DeleteItem(ctx context.Context, id uint64) error {
	catalog := s.repo.Catalog()
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindItem(ctx, id); err != nil {
			return err
		}
		switch catalog.OnDelete {
		case entities.DeleteProtect:
			count, err := s.deliveryRepo.CountByReference(ctx, catalog.RefField, id)
			if err != nil {
				return err
			}
			if count > 0 {
				return apperrors.ErrCatalogInUse
			}
		case entities.DeleteSetNull:
			if err := s.deliveryRepo.ClearReference(ctx, catalog.RefField, id); err != nil {
				return err
			}
		}
		return s.repo.DeleteItem(ctx, id)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCatalogInUse) {
			s.logger.Info("удаление записи справочника запрещено",
				zap.String("catalog", catalog.Code), zap.Uint64("id", id))
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}
