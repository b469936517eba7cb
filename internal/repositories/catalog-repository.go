package repositories

import (
	"context"
	"errors"
	"fmt"

	"delivery-system/internal/entities"
	db "delivery-system/internal/infrastructure/bd"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CatalogRepositoryInterface - доступ к одному справочнику.
type CatalogRepositoryInterface interface {
	Catalog() entities.Catalog
	GetItems(ctx context.Context, filter types.Filter) ([]entities.CatalogItem, uint64, error)
	FindItem(ctx context.Context, id uint64) (*entities.CatalogItem, error)
	ExistingIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error)
	CreateItem(ctx context.Context, label string) (*entities.CatalogItem, error)
	UpdateItem(ctx context.Context, id uint64, label string) (*entities.CatalogItem, error)
	DeleteItem(ctx context.Context, id uint64) error
}

type CatalogRepository struct {
	storage *pgxpool.Pool
	catalog entities.Catalog
	logger  *zap.Logger
	psql    sq.StatementBuilderType
}

func NewCatalogRepository(storage *pgxpool.Pool, catalog entities.Catalog, logger *zap.Logger) CatalogRepositoryInterface {
	return &CatalogRepository{
		storage: storage,
		catalog: catalog,
		logger:  logger,
		psql:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *CatalogRepository) Catalog() entities.Catalog { return r.catalog }

func (r *CatalogRepository) columns() string {
	return "id, " + r.catalog.LabelField
}

func (r *CatalogRepository) GetItems(ctx context.Context, filter types.Filter) ([]entities.CatalogItem, uint64, error) {
	q := conn(ctx, r.storage)

	countBuilder := db.ApplySearch(r.psql.Select("COUNT(*)").From(r.catalog.Table), filter.Search, r.catalog.LabelField)
	countSQL, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки COUNT для %s: %w", r.catalog.Table, err)
	}
	var total uint64
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entities.CatalogItem{}, 0, nil
	}

	builder := r.psql.Select(r.columns()).From(r.catalog.Table).OrderBy("id ASC")
	builder = db.ApplyListParams(builder, filter, r.catalog.LabelField)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SELECT для %s: %w", r.catalog.Table, err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]entities.CatalogItem, 0)
	for rows.Next() {
		var item entities.CatalogItem
		if err := rows.Scan(&item.ID, &item.Label); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *CatalogRepository) FindItem(ctx context.Context, id uint64) (*entities.CatalogItem, error) {
	query, args, err := r.psql.Select(r.columns()).From(r.catalog.Table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var item entities.CatalogItem
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(&item.ID, &item.Label); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *CatalogRepository) ExistingIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error) {
	found := make(map[uint64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query, args, err := r.psql.Select("id").From(r.catalog.Table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := conn(ctx, r.storage).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (r *CatalogRepository) CreateItem(ctx context.Context, label string) (*entities.CatalogItem, error) {
	query, args, err := r.psql.Insert(r.catalog.Table).
		Columns(r.catalog.LabelField).
		Values(label).
		Suffix("RETURNING " + r.columns()).
		ToSql()
	if err != nil {
		return nil, err
	}
	var item entities.CatalogItem
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(&item.ID, &item.Label); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *CatalogRepository) UpdateItem(ctx context.Context, id uint64, label string) (*entities.CatalogItem, error) {
	query, args, err := r.psql.Update(r.catalog.Table).
		Set(r.catalog.LabelField, label).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + r.columns()).
		ToSql()
	if err != nil {
		return nil, err
	}
	var item entities.CatalogItem
	if err := conn(ctx, r.storage).QueryRow(ctx, query, args...).Scan(&item.ID, &item.Label); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *CatalogRepository) DeleteItem(ctx context.Context, id uint64) error {
	query, args, err := r.psql.Delete(r.catalog.Table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	result, err := conn(ctx, r.storage).Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			r.logger.Warn("удаление записи справочника заблокировано ссылками",
				zap.String("table", r.catalog.Table),
				zap.Uint64("id", id),
				zap.String("constraint", pgErr.ConstraintName),
			)
			return apperrors.ErrCatalogInUse
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
