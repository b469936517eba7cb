package services

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"delivery-system/config"
	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	"delivery-system/internal/repositories"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/filestorage"
	"delivery-system/pkg/utils"
	"delivery-system/pkg/validation"

	"go.uber.org/zap"
)

type DeliveryServiceInterface interface {
	GetDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]dto.DeliveryDTO, uint64, error)
	FindDelivery(ctx context.Context, id uint64) (*dto.DeliveryDTO, error)
	CreateDelivery(ctx context.Context, payload dto.DeliveryWriteDTO) (*dto.DeliveryDTO, error)
	UpdateDelivery(ctx context.Context, id uint64, payload dto.DeliveryWriteDTO, partial bool) (*dto.DeliveryDTO, error)
	DeleteDelivery(ctx context.Context, id uint64) error
	ExportDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]dto.DeliveryDTO, error)
	UploadAttachment(ctx context.Context, fileHeader *multipart.FileHeader) (*dto.UploadedFileDTO, error)
}

type DeliveryService struct {
	repo        repositories.DeliveryRepositoryInterface
	catalogs    map[string]repositories.CatalogRepositoryInterface // поле ссылки -> репозиторий
	txManager   repositories.TxManagerInterface
	fileStorage filestorage.FileStorageInterface
	mediaURL    string
	logger      *zap.Logger
	now         func() time.Time
}

func NewDeliveryService(
	repo repositories.DeliveryRepositoryInterface,
	catalogRepos []repositories.CatalogRepositoryInterface,
	txManager repositories.TxManagerInterface,
	fileStorage filestorage.FileStorageInterface,
	mediaURL string,
	logger *zap.Logger,
) *DeliveryService {
	catalogs := make(map[string]repositories.CatalogRepositoryInterface, len(catalogRepos))
	for _, r := range catalogRepos {
		catalogs[r.Catalog().RefField] = r
	}
	return &DeliveryService{
		repo:        repo,
		catalogs:    catalogs,
		txManager:   txManager,
		fileStorage: fileStorage,
		mediaURL:    mediaURL,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock подменяет источник времени. Нужен тестам.
func (s *DeliveryService) WithClock(now func() time.Time) *DeliveryService {
	s.now = now
	return s
}

// attachmentRules собирает параметры проверки вложения. Если форма ссылается
// на загруженный файл, заранее выясняется, не занят ли он другой доставкой.
func (s *DeliveryService) attachmentRules(ctx context.Context, payload *dto.DeliveryWriteDTO, id uint64) (DeliveryRules, error) {
	upload, _ := validation.Rules(config.DeliveryAttachmentContext)
	rules := DeliveryRules{MediaURL: s.mediaURL, AttachmentPrefix: upload.PathPrefix}
	if s.fileStorage != nil {
		rules.Files = s.fileStorage
	}

	if payload.File != nil || !payload.Has(dto.FieldAttachments) || !payload.Attachments.Valid {
		return rules, nil
	}
	path := AttachmentPath(payload.Attachments.String, s.mediaURL)
	if path == "" {
		return rules, nil
	}
	count, err := s.repo.CountByAttachment(ctx, path, id)
	if err != nil {
		return rules, err
	}
	rules.UsedPaths = map[string]bool{path: count > 0}
	return rules, nil
}

func (s *DeliveryService) toDTOs(deliveries []entities.Delivery) []dto.DeliveryDTO {
	out := make([]dto.DeliveryDTO, 0, len(deliveries))
	for i := range deliveries {
		out = append(out, ToReadShape(&deliveries[i], s.mediaURL))
	}
	return out
}

func (s *DeliveryService) GetDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]dto.DeliveryDTO, uint64, error) {
	deliveries, total, err := s.repo.GetDeliveries(ctx, filter)
	if err != nil {
		s.logger.Error("не удалось получить список доставок", zap.Error(err))
		return nil, 0, err
	}
	return s.toDTOs(deliveries), total, nil
}

func (s *DeliveryService) FindDelivery(ctx context.Context, id uint64) (*dto.DeliveryDTO, error) {
	delivery, err := s.repo.FindDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	result := ToReadShape(delivery, s.mediaURL)
	return &result, nil
}

func (s *DeliveryService) ExportDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]dto.DeliveryDTO, error) {
	filter.WithPagination = false
	deliveries, _, err := s.GetDeliveries(ctx, filter)
	return deliveries, err
}

// existenceSet проверяет в справочниках все id, на которые ссылается форма.
func (s *DeliveryService) existenceSet(ctx context.Context, payload *dto.DeliveryWriteDTO) (ExistenceSet, error) {
	set := make(ExistenceSet)
	for field, ids := range CollectReferencedIDs(payload) {
		repo, ok := s.catalogs[field]
		if !ok {
			continue
		}
		found, err := repo.ExistingIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		set[field] = found
	}
	return set, nil
}

// checkUpload проверяет файл до открытия транзакции.
func (s *DeliveryService) checkUpload(fileHeader *multipart.FileHeader) error {
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.FieldError(dto.FieldAttachments, "Не удалось прочитать файл.")
	}
	defer file.Close()
	if err := validation.ValidateFile(fileHeader, file, config.DeliveryAttachmentContext); err != nil {
		if errors.Is(err, apperrors.ErrInvalidFile) {
			return apperrors.FieldError(dto.FieldAttachments, err.Error())
		}
		return err
	}
	return nil
}

func (s *DeliveryService) saveUpload(fileHeader *multipart.FileHeader) (string, error) {
	if s.fileStorage == nil {
		return "", errors.New("файловое хранилище не настроено")
	}
	rules, _ := validation.Rules(config.DeliveryAttachmentContext)
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()
	return s.fileStorage.Save(file, fileHeader.Filename, rules.PathPrefix)
}

func (s *DeliveryService) removeFile(path *string) {
	if path == nil || *path == "" || s.fileStorage == nil {
		return
	}
	if err := s.fileStorage.Delete(*path); err != nil {
		s.logger.Warn("не удалось удалить файл вложения", zap.String("path", *path), zap.Error(err))
	}
}

// write - общая часть создания и изменения. current == nil при создании.
func (s *DeliveryService) write(ctx context.Context, id uint64, payload dto.DeliveryWriteDTO, mode WriteMode) (*dto.DeliveryDTO, error) {
	if payload.File != nil {
		if err := s.checkUpload(payload.File); err != nil {
			return nil, err
		}
	}

	var (
		savedPath *string
		oldPath   *string
		resultID  uint64
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var current *entities.Delivery
		if mode != ModeCreate {
			found, err := s.repo.FindDeliveryForUpdate(ctx, id)
			if err != nil {
				return err
			}
			current = found
		}

		existing, err := s.existenceSet(ctx, &payload)
		if err != nil {
			return err
		}
		rules, err := s.attachmentRules(ctx, &payload, id)
		if err != nil {
			return err
		}
		delivery, verr := ValidateDelivery(payload, current, mode, existing, rules)
		if verr != nil {
			return verr
		}

		if payload.File != nil {
			path, err := s.saveUpload(payload.File)
			if err != nil {
				return err
			}
			savedPath = &path
			delivery.Attachments = &path
		}

		now := utils.NormalizeTime(s.now())
		if current == nil {
			delivery.CreatedAt = now
			delivery.UpdatedAt = now
			newID, err := s.repo.CreateDelivery(ctx, delivery)
			if err != nil {
				return err
			}
			resultID = newID
			return nil
		}

		delivery.ID = current.ID
		delivery.CreatedAt = current.CreatedAt
		delivery.UpdatedAt = now
		if now.Before(current.UpdatedAt) {
			delivery.UpdatedAt = current.UpdatedAt
		}
		if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
			return err
		}
		if current.Attachments != nil && !sameAttachment(current.Attachments, delivery.Attachments) {
			oldPath = current.Attachments
		}
		resultID = current.ID
		return nil
	})
	if err != nil {
		s.removeFile(savedPath)
		return nil, err
	}
	s.removeFile(oldPath)

	s.logger.Info("доставка сохранена", zap.Uint64("id", resultID), zap.Int("mode", int(mode)))
	return s.FindDelivery(ctx, resultID)
}

func sameAttachment(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *DeliveryService) CreateDelivery(ctx context.Context, payload dto.DeliveryWriteDTO) (*dto.DeliveryDTO, error) {
	return s.write(ctx, 0, payload, ModeCreate)
}

func (s *DeliveryService) UpdateDelivery(ctx context.Context, id uint64, payload dto.DeliveryWriteDTO, partial bool) (*dto.DeliveryDTO, error) {
	mode := ModeReplace
	if partial {
		mode = ModePatch
	}
	return s.write(ctx, id, payload, mode)
}

func (s *DeliveryService) DeleteDelivery(ctx context.Context, id uint64) error {
	var attachment *string
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		attachment = current.Attachments
		return s.repo.DeleteDelivery(ctx, id)
	})
	if err != nil {
		return err
	}
	s.removeFile(attachment)
	s.logger.Info("доставка удалена", zap.Uint64("id", id))
	return nil
}

// UploadAttachment сохраняет файл заранее; путь потом передается в поле attachments.
func (s *DeliveryService) UploadAttachment(ctx context.Context, fileHeader *multipart.FileHeader) (*dto.UploadedFileDTO, error) {
	if err := s.checkUpload(fileHeader); err != nil {
		return nil, err
	}
	path, err := s.saveUpload(fileHeader)
	if err != nil {
		s.logger.Error("не удалось сохранить файл", zap.String("name", fileHeader.Filename), zap.Error(err))
		return nil, err
	}
	return &dto.UploadedFileDTO{
		FilePath: path,
		FileURL:  utils.SafeDeref(AttachmentURL(s.mediaURL, &path)),
	}, nil
}
