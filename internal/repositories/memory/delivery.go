package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	apperrors "delivery-system/pkg/errors"
)

type deliveryRepository struct {
	store *Store
}

// hydrate раскрывает ссылки в подписи справочников, как JOIN в SQL.
func hydrate(st *state, d entities.Delivery) entities.Delivery {
	out := cloneDelivery(d)
	item := func(c entities.Catalog, id *uint64) *entities.CatalogItem {
		if id == nil {
			return nil
		}
		return &entities.CatalogItem{ID: *id, Label: st.catalogs[c.Table][*id]}
	}
	out.TransportModel = item(entities.TransportModelCatalog, &out.TransportModelID)
	out.Service = item(entities.ServiceCatalog, out.ServiceID)
	out.Packaging = item(entities.PackagingTypeCatalog, out.PackagingID)
	out.Status = item(entities.DeliveryStatusCatalog, &out.StatusID)
	out.TechnicalCondition = item(entities.TechStatusCatalog, &out.TechnicalConditionID)
	out.CargoType = item(entities.CargoTypeCatalog, out.CargoTypeID)
	return out
}

func matches(st *state, d entities.Delivery, filter entities.DeliveryFilter) bool {
	if filter.DeliveredFrom != nil && d.DeliveryDatetime.Before(*filter.DeliveredFrom) {
		return false
	}
	if filter.DeliveredTo != nil && d.DeliveryDatetime.After(*filter.DeliveredTo) {
		return false
	}
	if filter.ServiceID != nil && (d.ServiceID == nil || *d.ServiceID != *filter.ServiceID) {
		return false
	}
	if filter.StatusID != nil && d.StatusID != *filter.StatusID {
		return false
	}
	if filter.TechnicalConditionID != nil && d.TechnicalConditionID != *filter.TechnicalConditionID {
		return false
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		if id, err := strconv.ParseUint(search, 10, 64); err == nil && id == d.ID {
			return true
		}
		number := st.catalogs[entities.TransportModelCatalog.Table][d.TransportModelID]
		return strings.Contains(strings.ToLower(number), strings.ToLower(search))
	}
	return true
}

func (r *deliveryRepository) GetDeliveries(ctx context.Context, filter entities.DeliveryFilter) ([]entities.Delivery, uint64, error) {
	out := make([]entities.Delivery, 0)
	err := r.store.access(ctx, func(st *state) error {
		for _, d := range st.deliveries {
			if matches(st, d, filter) {
				out = append(out, hydrate(st, d))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DispatchDatetime.Equal(out[j].DispatchDatetime) {
			return out[i].DispatchDatetime.After(out[j].DispatchDatetime)
		}
		return out[i].ID > out[j].ID
	})
	total := uint64(len(out))
	return paginate(out, filter.Filter), total, nil
}

func (r *deliveryRepository) FindDelivery(ctx context.Context, id uint64) (*entities.Delivery, error) {
	var found *entities.Delivery
	err := r.store.access(ctx, func(st *state) error {
		d, ok := st.deliveries[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		h := hydrate(st, d)
		found = &h
		return nil
	})
	return found, err
}

// FindDeliveryForUpdate: внутри транзакции хранилище уже заблокировано целиком.
func (r *deliveryRepository) FindDeliveryForUpdate(ctx context.Context, id uint64) (*entities.Delivery, error) {
	return r.FindDelivery(ctx, id)
}

// checkRefs повторяет проверку внешних ключей.
func checkRefs(st *state, d *entities.Delivery) error {
	for _, c := range entities.Catalogs() {
		ref := d.RefID(c.RefField)
		if ref == nil {
			continue
		}
		if _, ok := st.catalogs[c.Table][*ref]; !ok {
			return apperrors.FieldError(c.RefField, dto.MsgUnknownPK(*ref))
		}
	}
	return nil
}

// checkAttachment повторяет уникальный индекс по attachments.
func checkAttachment(st *state, d *entities.Delivery) error {
	if d.Attachments == nil {
		return nil
	}
	for id, other := range st.deliveries {
		if id != d.ID && other.Attachments != nil && *other.Attachments == *d.Attachments {
			return apperrors.FieldError(dto.FieldAttachments, dto.MsgFileInUse)
		}
	}
	return nil
}

func (r *deliveryRepository) CreateDelivery(ctx context.Context, delivery *entities.Delivery) (uint64, error) {
	var id uint64
	err := r.store.access(ctx, func(st *state) error {
		if err := checkRefs(st, delivery); err != nil {
			return err
		}
		if err := checkAttachment(st, delivery); err != nil {
			return err
		}
		st.nextDelivery++
		id = st.nextDelivery
		stored := cloneDelivery(*delivery)
		stored.ID = id
		st.deliveries[id] = stored
		return nil
	})
	return id, err
}

func (r *deliveryRepository) UpdateDelivery(ctx context.Context, delivery *entities.Delivery) error {
	return r.store.access(ctx, func(st *state) error {
		current, ok := st.deliveries[delivery.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		if err := checkRefs(st, delivery); err != nil {
			return err
		}
		if err := checkAttachment(st, delivery); err != nil {
			return err
		}
		stored := cloneDelivery(*delivery)
		stored.CreatedAt = current.CreatedAt
		st.deliveries[delivery.ID] = stored
		return nil
	})
}

func (r *deliveryRepository) DeleteDelivery(ctx context.Context, id uint64) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.deliveries[id]; !ok {
			return apperrors.ErrNotFound
		}
		delete(st.deliveries, id)
		return nil
	})
}

func (r *deliveryRepository) CountByReference(ctx context.Context, refField string, id uint64) (uint64, error) {
	if _, ok := entities.CatalogByRefField(refField); !ok {
		return 0, fmt.Errorf("неизвестное поле ссылки: %s", refField)
	}
	var count uint64
	err := r.store.access(ctx, func(st *state) error {
		for _, d := range st.deliveries {
			if ref := d.RefID(refField); ref != nil && *ref == id {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *deliveryRepository) ClearReference(ctx context.Context, refField string, id uint64) error {
	if _, ok := entities.CatalogByRefField(refField); !ok {
		return fmt.Errorf("неизвестное поле ссылки: %s", refField)
	}
	return r.store.access(ctx, func(st *state) error {
		for deliveryID, d := range st.deliveries {
			if ref := d.RefID(refField); ref != nil && *ref == id {
				clearRef(&d, refField)
				st.deliveries[deliveryID] = d
			}
		}
		return nil
	})
}

func (r *deliveryRepository) CountByAttachment(ctx context.Context, path string, excludeID uint64) (uint64, error) {
	var count uint64
	err := r.store.access(ctx, func(st *state) error {
		for id, d := range st.deliveries {
			if id != excludeID && d.Attachments != nil && *d.Attachments == path {
				count++
			}
		}
		return nil
	})
	return count, err
}
