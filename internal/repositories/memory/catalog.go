package memory

import (
	"context"
	"sort"
	"strings"

	"delivery-system/internal/entities"
	apperrors "delivery-system/pkg/errors"
	"delivery-system/pkg/types"
)

type catalogRepository struct {
	store   *Store
	catalog entities.Catalog
}

func (r *catalogRepository) Catalog() entities.Catalog { return r.catalog }

func (r *catalogRepository) GetItems(ctx context.Context, filter types.Filter) ([]entities.CatalogItem, uint64, error) {
	items := make([]entities.CatalogItem, 0)
	err := r.store.access(ctx, func(st *state) error {
		needle := strings.ToLower(filter.Search)
		for id, label := range st.catalogs[r.catalog.Table] {
			if needle != "" && !strings.Contains(strings.ToLower(label), needle) {
				continue
			}
			items = append(items, entities.CatalogItem{ID: id, Label: label})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	total := uint64(len(items))
	return paginate(items, filter), total, nil
}

func (r *catalogRepository) FindItem(ctx context.Context, id uint64) (*entities.CatalogItem, error) {
	var item *entities.CatalogItem
	err := r.store.access(ctx, func(st *state) error {
		label, ok := st.catalogs[r.catalog.Table][id]
		if !ok {
			return apperrors.ErrNotFound
		}
		item = &entities.CatalogItem{ID: id, Label: label}
		return nil
	})
	return item, err
}

func (r *catalogRepository) ExistingIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error) {
	found := make(map[uint64]bool, len(ids))
	err := r.store.access(ctx, func(st *state) error {
		for _, id := range ids {
			if _, ok := st.catalogs[r.catalog.Table][id]; ok {
				found[id] = true
			}
		}
		return nil
	})
	return found, err
}

func (r *catalogRepository) CreateItem(ctx context.Context, label string) (*entities.CatalogItem, error) {
	var item *entities.CatalogItem
	err := r.store.access(ctx, func(st *state) error {
		st.nextCatalogID[r.catalog.Table]++
		id := st.nextCatalogID[r.catalog.Table]
		st.catalogs[r.catalog.Table][id] = label
		item = &entities.CatalogItem{ID: id, Label: label}
		return nil
	})
	return item, err
}

func (r *catalogRepository) UpdateItem(ctx context.Context, id uint64, label string) (*entities.CatalogItem, error) {
	var item *entities.CatalogItem
	err := r.store.access(ctx, func(st *state) error {
		if _, ok := st.catalogs[r.catalog.Table][id]; !ok {
			return apperrors.ErrNotFound
		}
		st.catalogs[r.catalog.Table][id] = label
		item = &entities.CatalogItem{ID: id, Label: label}
		return nil
	})
	return item, err
}

// DeleteItem повторяет поведение внешних ключей: RESTRICT или SET NULL.
func (r *catalogRepository) DeleteItem(ctx context.Context, id uint64) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.catalogs[r.catalog.Table][id]; !ok {
			return apperrors.ErrNotFound
		}
		for deliveryID, d := range st.deliveries {
			ref := d.RefID(r.catalog.RefField)
			if ref == nil || *ref != id {
				continue
			}
			if r.catalog.OnDelete == entities.DeleteProtect {
				return apperrors.ErrCatalogInUse
			}
			clearRef(&d, r.catalog.RefField)
			st.deliveries[deliveryID] = d
		}
		delete(st.catalogs[r.catalog.Table], id)
		return nil
	})
}

func clearRef(d *entities.Delivery, refField string) {
	switch refField {
	case entities.ServiceCatalog.RefField:
		d.ServiceID = nil
	case entities.PackagingTypeCatalog.RefField:
		d.PackagingID = nil
	case entities.CargoTypeCatalog.RefField:
		d.CargoTypeID = nil
	}
}

func paginate[T any](items []T, filter types.Filter) []T {
	if !filter.WithPagination {
		return items
	}
	start := filter.Offset
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return items[start:end]
}
