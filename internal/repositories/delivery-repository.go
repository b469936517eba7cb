package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	db "delivery-system/internal/infrastructure/bd"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/utils"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	deliveryTable = "deliveries"
	// уникальный частичный индекс по attachments
	deliveryAttachmentsKey = "deliveries_attachments_key"
)

var deliverySelectColumns = []string{
	"d.id", "d.transport_model_id", "d.transport_number", "d.dispatch_datetime", "d.delivery_datetime",
	"d.distance", "d.service_id", "d.packaging_id", "d.status_id", "d.technical_condition_id",
	"d.collector", "d.comment", "d.cargo_type_id", "d.attachments", "d.created_at", "d.updated_at",
	"tm.number", "srv.name", "pkg.name", "ds.name", "ts.name", "ct.name",
}

type dbDelivery struct {
	ID                   uint64
	TransportModelID     uint64
	TransportNumber      string
	DispatchDatetime     time.Time
	DeliveryDatetime     time.Time
	Distance             string
	ServiceID            sql.NullInt64
	PackagingID          sql.NullInt64
	StatusID             uint64
	TechnicalConditionID uint64
	Collector            string
	Comment              string
	CargoTypeID          sql.NullInt64
	Attachments          sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time

	TransportModelNumber string
	ServiceName          sql.NullString
	PackagingName        sql.NullString
	StatusName           string
	TechStatusName       string
	CargoTypeName        sql.NullString
}

func (r *dbDelivery) scanTargets() []interface{} {
	return []interface{}{
		&r.ID, &r.TransportModelID, &r.TransportNumber, &r.DispatchDatetime, &r.DeliveryDatetime,
		&r.Distance, &r.ServiceID, &r.PackagingID, &r.StatusID, &r.TechnicalConditionID,
		&r.Collector, &r.Comment, &r.CargoTypeID, &r.Attachments, &r.CreatedAt, &r.UpdatedAt,
		&r.TransportModelNumber, &r.ServiceName, &r.PackagingName, &r.StatusName, &r.TechStatusName, &r.CargoTypeName,
	}
}

func nullableItem(id sql.NullInt64, label sql.NullString) *entities.CatalogItem {
	if !id.Valid {
		return nil
	}
	return &entities.CatalogItem{ID: uint64(id.Int64), Label: label.String}
}

func (r *dbDelivery) toEntity() entities.Delivery {
	return entities.Delivery{
		ID:                   r.ID,
		TransportModelID:     r.TransportModelID,
		TransportNumber:      r.TransportNumber,
		DispatchDatetime:     utils.NormalizeTime(r.DispatchDatetime),
		DeliveryDatetime:     utils.NormalizeTime(r.DeliveryDatetime),
		Distance:             r.Distance,
		ServiceID:            utils.NullInt64ToUint64Ptr(r.ServiceID),
		PackagingID:          utils.NullInt64ToUint64Ptr(r.PackagingID),
		StatusID:             r.StatusID,
		TechnicalConditionID: r.TechnicalConditionID,
		Collector:            r.Collector,
		Comment:              r.Comment,
		CargoTypeID:          utils.NullInt64ToUint64Ptr(r.CargoTypeID),
		Attachments:          utils.NullStringToStrPtr(r.Attachments),
		CreatedAt:            utils.NormalizeTime(r.CreatedAt),
		UpdatedAt:            utils.NormalizeTime(r.UpdatedAt),

		TransportModel:     &entities.CatalogItem{ID: r.TransportModelID, Label: r.TransportModelNumber},
		Service:            nullableItem(r.ServiceID, r.ServiceName),
		Packaging:          nullableItem(r.PackagingID, r.PackagingName),
		Status:             &entities.CatalogItem{ID: r.StatusID, Label: r.StatusName},
		TechnicalCondition: &entities.CatalogItem{ID: r.TechnicalConditionID, Label: r.TechStatusName},
		CargoType:          nullableItem(r.CargoTypeID, r.CargoTypeName),
	}
}

type DeliveryRepositoryInterface interface {
	GetDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]entities.Delivery, uint64, error)
	FindDelivery(ctx context.Context, id uint64) (*entities.Delivery, error)
	FindDeliveryForUpdate(ctx context.Context, id uint64) (*entities.Delivery, error)
	CreateDelivery(ctx context.Context, delivery *entities.Delivery) (uint64, error)
	UpdateDelivery(ctx context.Context, delivery *entities.Delivery) error
	DeleteDelivery(ctx context.Context, id uint64) error
	CountByReference(ctx context.Context, refField string, id uint64) (uint64, error)
	ClearReference(ctx context.Context, refField string, id uint64) error
	CountByAttachment(ctx context.Context, path string, excludeID uint64) (uint64, error)
}

type DeliveryRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
	psql    sq.StatementBuilderType
}

func NewDeliveryRepository(storage *pgxpool.Pool, logger *zap.Logger) DeliveryRepositoryInterface {
	return &DeliveryRepository{
		storage: storage,
		logger:  logger,
		psql:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DeliveryRepository) baseSelect(columns ...string) sq.SelectBuilder {
	return r.psql.Select(columns...).
		From(deliveryTable + " AS d").
		Join("transport_models AS tm ON tm.id = d.transport_model_id").
		Join("delivery_statuses AS ds ON ds.id = d.status_id").
		Join("tech_statuses AS ts ON ts.id = d.technical_condition_id").
		LeftJoin("services AS srv ON srv.id = d.service_id").
		LeftJoin("packaging_types AS pkg ON pkg.id = d.packaging_id").
		LeftJoin("cargo_types AS ct ON ct.id = d.cargo_type_id")
}

func applyDeliveryFilter(builder sq.SelectBuilder, filter entities.DeliveryFilter) sq.SelectBuilder {
	if filter.DeliveredFrom != nil {
		builder = builder.Where(sq.GtOrEq{"d.delivery_datetime": *filter.DeliveredFrom})
	}
	if filter.DeliveredTo != nil {
		builder = builder.Where(sq.LtOrEq{"d.delivery_datetime": *filter.DeliveredTo})
	}
	if filter.ServiceID != nil {
		builder = builder.Where(sq.Eq{"d.service_id": *filter.ServiceID})
	}
	if filter.StatusID != nil {
		builder = builder.Where(sq.Eq{"d.status_id": *filter.StatusID})
	}
	if filter.TechnicalConditionID != nil {
		builder = builder.Where(sq.Eq{"d.technical_condition_id": *filter.TechnicalConditionID})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + db.EscapeLike(search) + "%"
		if id, err := strconv.ParseUint(search, 10, 64); err == nil {
			builder = builder.Where(sq.Or{sq.Eq{"d.id": id}, sq.ILike{"tm.number": pattern}})
		} else {
			builder = builder.Where(sq.ILike{"tm.number": pattern})
		}
	}
	return builder
}

func (r *DeliveryRepository) GetDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]entities.Delivery, uint64, error) {
	q := conn(ctx, r.storage)

	countSQL, countArgs, err := applyDeliveryFilter(r.baseSelect("COUNT(*)"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки COUNT доставок: %w", err)
	}
	var total uint64
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entities.Delivery{}, 0, nil
	}

	builder := applyDeliveryFilter(r.baseSelect(deliverySelectColumns...), filter).
		OrderBy("d.dispatch_datetime DESC", "d.id DESC")
	builder = db.ApplyPagination(builder, filter.Filter)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SELECT доставок: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	deliveries := make([]entities.Delivery, 0)
	for rows.Next() {
		var row dbDelivery
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, 0, err
		}
		deliveries = append(deliveries, row.toEntity())
	}
	return deliveries, total, rows.Err()
}

func (r *DeliveryRepository) findOne(ctx context.Context, builder sq.SelectBuilder) (*entities.Delivery, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	var row dbDelivery
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(row.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	delivery := row.toEntity()
	return &delivery, nil
}

func (r *DeliveryRepository) FindDelivery(ctx context.Context, id uint64) (*entities.Delivery, error) {
	return r.findOne(ctx, r.baseSelect(deliverySelectColumns...).Where(sq.Eq{"d.id": id}))
}

// FindDeliveryForUpdate блокирует строку доставки до конца транзакции.
func (r *DeliveryRepository) FindDeliveryForUpdate(ctx context.Context, id uint64) (*entities.Delivery, error) {
	return r.findOne(ctx, r.baseSelect(deliverySelectColumns...).Where(sq.Eq{"d.id": id}).Suffix("FOR UPDATE OF d"))
}

func (r *DeliveryRepository) CreateDelivery(ctx context.Context, delivery *entities.Delivery) (uint64, error) {
	query, args, err := r.psql.Insert(deliveryTable).
		Columns(
			"transport_model_id", "transport_number", "dispatch_datetime", "delivery_datetime", "distance",
			"service_id", "packaging_id", "status_id", "technical_condition_id",
			"collector", "comment", "cargo_type_id", "attachments", "created_at", "updated_at",
		).
		Values(
			delivery.TransportModelID, delivery.TransportNumber, delivery.DispatchDatetime, delivery.DeliveryDatetime, delivery.Distance,
			utils.Uint64PtrToNullInt64(delivery.ServiceID), utils.Uint64PtrToNullInt64(delivery.PackagingID),
			delivery.StatusID, delivery.TechnicalConditionID,
			delivery.Collector, delivery.Comment, utils.Uint64PtrToNullInt64(delivery.CargoTypeID),
			utils.StringPointerToNullString(delivery.Attachments), delivery.CreatedAt, delivery.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id uint64
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, r.mapWriteError(err, delivery)
	}
	return id, nil
}

func (r *DeliveryRepository) UpdateDelivery(ctx context.Context, delivery *entities.Delivery) error {
	query, args, err := r.psql.Update(deliveryTable).
		SetMap(map[string]interface{}{
			"transport_model_id":     delivery.TransportModelID,
			"transport_number":       delivery.TransportNumber,
			"dispatch_datetime":      delivery.DispatchDatetime,
			"delivery_datetime":      delivery.DeliveryDatetime,
			"distance":               delivery.Distance,
			"service_id":             utils.Uint64PtrToNullInt64(delivery.ServiceID),
			"packaging_id":           utils.Uint64PtrToNullInt64(delivery.PackagingID),
			"status_id":              delivery.StatusID,
			"technical_condition_id": delivery.TechnicalConditionID,
			"collector":              delivery.Collector,
			"comment":                delivery.Comment,
			"cargo_type_id":          utils.Uint64PtrToNullInt64(delivery.CargoTypeID),
			"attachments":            utils.StringPointerToNullString(delivery.Attachments),
			"updated_at":             delivery.UpdatedAt,
		}).
		Where(sq.Eq{"id": delivery.ID}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := conn(ctx, r.storage).Exec(ctx, query, args...)
	if err != nil {
		return r.mapWriteError(err, delivery)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *DeliveryRepository) DeleteDelivery(ctx context.Context, id uint64) error {
	query, args, err := r.psql.Delete(deliveryTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	result, err := conn(ctx, r.storage).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// referenceColumn допускает в SQL только известные колонки ссылок.
func referenceColumn(refField string) (string, error) {
	if _, ok := entities.CatalogByRefField(refField); !ok {
		return "", fmt.Errorf("неизвестное поле ссылки: %s", refField)
	}
	return refField, nil
}

func (r *DeliveryRepository) CountByReference(ctx context.Context, refField string, id uint64) (uint64, error) {
	column, err := referenceColumn(refField)
	if err != nil {
		return 0, err
	}
	query, args, err := r.psql.Select("COUNT(*)").From(deliveryTable).Where(sq.Eq{column: id}).ToSql()
	if err != nil {
		return 0, err
	}
	var count uint64
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DeliveryRepository) ClearReference(ctx context.Context, refField string, id uint64) error {
	column, err := referenceColumn(refField)
	if err != nil {
		return err
	}
	query, args, err := r.psql.Update(deliveryTable).Set(column, nil).Where(sq.Eq{column: id}).ToSql()
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.storage).Exec(ctx, query, args...)
	return err
}

// CountByAttachment считает доставки, кроме excludeID, которые ссылаются на файл.
func (r *DeliveryRepository) CountByAttachment(ctx context.Context, path string, excludeID uint64) (uint64, error) {
	query, args, err := r.psql.Select("COUNT(*)").From(deliveryTable).
		Where(sq.Eq{"attachments": path}).
		Where(sq.NotEq{"id": excludeID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count uint64
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// mapWriteError превращает нарушение внешнего ключа и повтор вложения в ошибку валидации поля.
// Имя поля берется из имени ограничения deliveries_<поле>_fkey.
func (r *DeliveryRepository) mapWriteError(err error, delivery *entities.Delivery) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == "23505" && pgErr.ConstraintName == deliveryAttachmentsKey {
		return apperrors.FieldError(dto.FieldAttachments, dto.MsgFileInUse)
	}
	if pgErr.Code != "23503" {
		return err
	}
	field := strings.TrimSuffix(strings.TrimPrefix(pgErr.ConstraintName, deliveryTable+"_"), "_fkey")
	r.logger.Warn("нарушение внешнего ключа при записи доставки",
		zap.String("constraint", pgErr.ConstraintName),
		zap.Uint64("delivery_id", delivery.ID),
	)
	if ref := delivery.RefID(field); ref != nil {
		return apperrors.FieldError(field, dto.MsgUnknownPK(*ref))
	}
	return apperrors.FieldError(field, pgErr.Message)
}
