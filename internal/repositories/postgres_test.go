package repositories

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	"delivery-system/pkg/database/migrations"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPool *pgxpool.Pool

// TestMain поднимает соединение с тестовой БД, если задан TEST_DATABASE_URL.
// Без него тесты PostgreSQL пропускаются.
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		ctx := context.Background()
		if err := migrations.Up(ctx, dsn, zap.NewNop()); err != nil {
			log.Fatalf("Не удалось применить миграции: %v", err)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			log.Fatalf("Не удалось подключиться к тестовой БД: %v", err)
		}
		testPool = pool
	}

	code := m.Run()
	if testPool != nil {
		testPool.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testPool == nil {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	return testPool
}

// cleanupTables очищает таблицы для изоляции тестов.
func cleanupTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE TABLE deliveries, transport_models, delivery_statuses,
		tech_statuses, services, packaging_types, cargo_types RESTART IDENTITY CASCADE;`)
	require.NoError(t, err, "Не удалось очистить таблицы")
}

type pgFixture struct {
	catalogs   map[string]CatalogRepositoryInterface // поле ссылки -> репозиторий
	ids        map[string]uint64
	deliveries DeliveryRepositoryInterface
	tx         TxManagerInterface
}

func newPgFixture(t *testing.T) *pgFixture {
	pool := requireDB(t)
	cleanupTables(t, pool)

	logger := zap.NewNop()
	f := &pgFixture{
		catalogs:   make(map[string]CatalogRepositoryInterface),
		ids:        make(map[string]uint64),
		deliveries: NewDeliveryRepository(pool, logger),
		tx:         NewTxManager(pool),
	}
	for _, c := range entities.Catalogs() {
		repo := NewCatalogRepository(pool, c, logger)
		item, err := repo.CreateItem(context.Background(), c.Title)
		require.NoError(t, err)
		f.catalogs[c.RefField] = repo
		f.ids[c.RefField] = item.ID
	}
	return f
}

func (f *pgFixture) delivery(dispatch time.Time) *entities.Delivery {
	service := f.ids[entities.ServiceCatalog.RefField]
	cargo := f.ids[entities.CargoTypeCatalog.RefField]
	return &entities.Delivery{
		TransportModelID:     f.ids[entities.TransportModelCatalog.RefField],
		TransportNumber:      "A123BC",
		DispatchDatetime:     dispatch,
		DeliveryDatetime:     dispatch.Add(26 * time.Hour),
		Distance:             "150 км",
		ServiceID:            &service,
		StatusID:             f.ids[entities.DeliveryStatusCatalog.RefField],
		TechnicalConditionID: f.ids[entities.TechStatusCatalog.RefField],
		Collector:            "Иванов",
		CargoTypeID:          &cargo,
		CreatedAt:            dispatch,
		UpdatedAt:            dispatch,
	}
}

func TestCatalogRepository_Postgres(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	repo := f.catalogs[entities.PackagingTypeCatalog.RefField]

	_, err := repo.CreateItem(ctx, "Палета 100%_")
	require.NoError(t, err)

	items, total, err := repo.GetItems(ctx, types.Filter{Search: "100%_"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total, "спецсимволы LIKE экранируются")
	require.Len(t, items, 1)

	items, total, err = repo.GetItems(ctx, types.Filter{WithPagination: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Палета 100%_", items[0].Label)

	updated, err := repo.UpdateItem(ctx, items[0].ID, "Паллета")
	require.NoError(t, err)
	assert.Equal(t, "Паллета", updated.Label)

	found, err := repo.ExistingIDs(ctx, []uint64{items[0].ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{items[0].ID: true}, found)

	_, err = repo.FindItem(ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeliveryRepository_Postgres(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	dispatch := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	id, err := f.deliveries.CreateDelivery(ctx, f.delivery(dispatch))
	require.NoError(t, err)

	got, err := f.deliveries.FindDelivery(ctx, id)
	require.NoError(t, err)
	assert.True(t, dispatch.Equal(got.DispatchDatetime))
	require.NotNil(t, got.TransportModel)
	assert.Equal(t, entities.TransportModelCatalog.Title, got.TransportModel.Label)
	require.NotNil(t, got.Service)
	assert.Nil(t, got.Packaging)

	t.Run("внешний ключ", func(t *testing.T) {
		bad := f.delivery(dispatch)
		bad.StatusID = 999
		_, err := f.deliveries.CreateDelivery(ctx, bad)
		verr, ok := apperrors.AsValidation(err)
		require.True(t, ok, "ожидалась ошибка поля, получено: %v", err)
		assert.Contains(t, verr.Fields, entities.DeliveryStatusCatalog.RefField)
	})

	t.Run("RESTRICT и SET NULL", func(t *testing.T) {
		err := f.catalogs[entities.TechStatusCatalog.RefField].DeleteItem(ctx, f.ids[entities.TechStatusCatalog.RefField])
		assert.ErrorIs(t, err, apperrors.ErrCatalogInUse)

		count, err := f.deliveries.CountByReference(ctx, entities.CargoTypeCatalog.RefField, f.ids[entities.CargoTypeCatalog.RefField])
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)

		require.NoError(t, f.catalogs[entities.CargoTypeCatalog.RefField].DeleteItem(ctx, f.ids[entities.CargoTypeCatalog.RefField]))
		after, err := f.deliveries.FindDelivery(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, after.CargoTypeID)
		assert.True(t, got.UpdatedAt.Equal(after.UpdatedAt))
	})

	t.Run("транзакция откатывается", func(t *testing.T) {
		err := f.tx.RunInTransaction(ctx, func(ctx context.Context) error {
			if _, err := f.deliveries.FindDeliveryForUpdate(ctx, id); err != nil {
				return err
			}
			if err := f.deliveries.ClearReference(ctx, entities.ServiceCatalog.RefField, f.ids[entities.ServiceCatalog.RefField]); err != nil {
				return err
			}
			return apperrors.ErrBadRequest
		})
		require.ErrorIs(t, err, apperrors.ErrBadRequest)

		after, err := f.deliveries.FindDelivery(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, after.ServiceID, "изменения внутри откаченной транзакции не видны")
	})

	t.Run("фильтры", func(t *testing.T) {
		later := dispatch.Add(10 * 24 * time.Hour)
		second := f.delivery(later)
		second.ServiceID = nil
		secondID, err := f.deliveries.CreateDelivery(ctx, second)
		require.NoError(t, err)

		list, total, err := f.deliveries.GetDeliveries(ctx, entities.DeliveryFilter{})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), total)
		require.Len(t, list, 2)
		assert.Equal(t, secondID, list[0].ID)

		service := f.ids[entities.ServiceCatalog.RefField]
		list, _, err = f.deliveries.GetDeliveries(ctx, entities.DeliveryFilter{ServiceID: &service})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)

		from := later
		list, _, err = f.deliveries.GetDeliveries(ctx, entities.DeliveryFilter{DeliveredFrom: &from})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, secondID, list[0].ID)

		list, _, err = f.deliveries.GetDeliveries(ctx, entities.DeliveryFilter{Filter: types.Filter{Search: "a123"}})
		require.NoError(t, err)
		assert.Empty(t, list, "поиск идет по номеру модели транспорта и id")
	})

	require.NoError(t, f.deliveries.DeleteDelivery(ctx, id))
	assert.ErrorIs(t, f.deliveries.DeleteDelivery(ctx, id), apperrors.ErrNotFound)
}

func TestDeliveryRepository_PostgresAttachments(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	dispatch := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	path := "deliveries/files/2024/01/15/act.pdf"

	first := f.delivery(dispatch)
	first.Attachments = &path
	firstID, err := f.deliveries.CreateDelivery(ctx, first)
	require.NoError(t, err)

	count, err := f.deliveries.CountByAttachment(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	count, err = f.deliveries.CountByAttachment(ctx, path, firstID)
	require.NoError(t, err)
	assert.Zero(t, count)

	second := f.delivery(dispatch)
	second.Attachments = &path
	_, err = f.deliveries.CreateDelivery(ctx, second)
	verr, ok := apperrors.AsValidation(err)
	require.True(t, ok, "ожидалась ошибка поля, получено: %v", err)
	assert.Equal(t, dto.MsgFileInUse, verr.Fields[dto.FieldAttachments])

	second.Attachments = nil
	_, err = f.deliveries.CreateDelivery(ctx, second)
	require.NoError(t, err, "без вложения уникальность не проверяется")
}
