package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalogs(t *testing.T, store *Store) map[string]uint64 {
	t.Helper()
	ctx := context.Background()
	ids := make(map[string]uint64)
	for _, c := range entities.Catalogs() {
		item, err := store.Catalog(c).CreateItem(ctx, c.Title)
		require.NoError(t, err)
		ids[c.RefField] = item.ID
	}
	return ids
}

func newDelivery(ids map[string]uint64, dispatch time.Time) *entities.Delivery {
	service := ids[entities.ServiceCatalog.RefField]
	return &entities.Delivery{
		TransportModelID:     ids[entities.TransportModelCatalog.RefField],
		TransportNumber:      "A001AA",
		DispatchDatetime:     dispatch,
		DeliveryDatetime:     dispatch.Add(24 * time.Hour),
		Distance:             "10 км",
		ServiceID:            &service,
		StatusID:             ids[entities.DeliveryStatusCatalog.RefField],
		TechnicalConditionID: ids[entities.TechStatusCatalog.RefField],
		CreatedAt:            dispatch,
		UpdatedAt:            dispatch,
	}
}

func TestStore_TransactionRollback(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	services := store.Catalog(entities.ServiceCatalog)

	boom := errors.New("откат")
	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := services.CreateItem(ctx, "Экспресс")
		require.NoError(t, err)
		// Вложенный вызов переиспользует транзакцию и не блокируется
		return store.RunInTransaction(ctx, func(ctx context.Context) error {
			items, _, err := services.GetItems(ctx, types.Filter{})
			require.NoError(t, err)
			assert.Len(t, items, 1)
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	items, total, err := services.GetItems(ctx, types.Filter{})
	require.NoError(t, err)
	assert.Empty(t, items, "после ошибки состояние должно откатиться")
	assert.Zero(t, total)

	created, err := services.CreateItem(ctx, "Экспресс")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.ID, "счетчик id тоже откатывается")
}

func TestStore_CatalogSearchAndPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Catalog(entities.CargoTypeCatalog)
	for _, label := range []string{"Хрупкий", "Опасный", "Хрупкое стекло", "Обычный"} {
		_, err := repo.CreateItem(ctx, label)
		require.NoError(t, err)
	}

	items, total, err := repo.GetItems(ctx, types.Filter{Search: "хруп"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(1), items[0].ID)
	assert.Equal(t, uint64(3), items[1].ID)

	items, total, err = repo.GetItems(ctx, types.Filter{WithPagination: true, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)
	require.Len(t, items, 2)
	assert.Equal(t, "Хрупкое стекло", items[0].Label)

	found, err := repo.ExistingIDs(ctx, []uint64{1, 4, 99})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{1: true, 4: true}, found)
}

func TestStore_DeleteCatalogItemFollowsPolicy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ids := seedCatalogs(t, store)

	id, err := store.Deliveries().CreateDelivery(ctx, newDelivery(ids, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	err = store.Catalog(entities.DeliveryStatusCatalog).DeleteItem(ctx, ids[entities.DeliveryStatusCatalog.RefField])
	assert.ErrorIs(t, err, apperrors.ErrCatalogInUse)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, store.Catalog(entities.ServiceCatalog).DeleteItem(ctx, ids[entities.ServiceCatalog.RefField]))
	d, err := store.Deliveries().FindDelivery(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, d.ServiceID)
	assert.Nil(t, d.Service)
	require.NotNil(t, d.Status)
	assert.Equal(t, entities.DeliveryStatusCatalog.Title, d.Status.Label)
}

func TestStore_DeliveryForeignKeys(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ids := seedCatalogs(t, store)

	d := newDelivery(ids, time.Now().UTC())
	d.StatusID = 42
	_, err := store.Deliveries().CreateDelivery(ctx, d)
	verr, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, entities.DeliveryStatusCatalog.RefField)
}

func TestStore_GetDeliveriesOrderAndFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ids := seedCatalogs(t, store)
	repo := store.Deliveries()

	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	first, err := repo.CreateDelivery(ctx, newDelivery(ids, base))
	require.NoError(t, err)
	second, err := repo.CreateDelivery(ctx, newDelivery(ids, base.Add(48*time.Hour)))
	require.NoError(t, err)
	third, err := repo.CreateDelivery(ctx, newDelivery(ids, base))
	require.NoError(t, err)

	list, total, err := repo.GetDeliveries(ctx, entities.DeliveryFilter{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{second, third, first}, []uint64{list[0].ID, list[1].ID, list[2].ID},
		"сортировка по дате отправки, затем по id в обратном порядке")

	from := base.Add(48 * time.Hour)
	list, _, err = repo.GetDeliveries(ctx, entities.DeliveryFilter{DeliveredFrom: &from})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second, list[0].ID)

	count, err := repo.CountByReference(ctx, entities.ServiceCatalog.RefField, ids[entities.ServiceCatalog.RefField])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	_, err = repo.CountByReference(ctx, "unknown_id", 1)
	assert.Error(t, err)
}

func TestStore_AttachmentIsUnique(t *testing.T) {
	store := NewStore()
	ids := seedCatalogs(t, store)
	repo := store.Deliveries()
	ctx := context.Background()
	dispatch := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	path := "deliveries/files/2024/01/15/act.pdf"

	first := newDelivery(ids, dispatch)
	first.Attachments = &path
	firstID, err := repo.CreateDelivery(ctx, first)
	require.NoError(t, err)

	count, err := repo.CountByAttachment(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	count, err = repo.CountByAttachment(ctx, path, firstID)
	require.NoError(t, err)
	assert.Zero(t, count)

	second := newDelivery(ids, dispatch)
	secondID, err := repo.CreateDelivery(ctx, second)
	require.NoError(t, err)

	second.ID = secondID
	second.Attachments = &path
	err = repo.UpdateDelivery(ctx, second)
	verr, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, dto.MsgFileInUse, verr.Fields[dto.FieldAttachments])

	// своя запись не конфликтует сама с собой
	first.ID = firstID
	require.NoError(t, repo.UpdateDelivery(ctx, first))
}
