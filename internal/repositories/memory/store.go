// Package memory - хранилище в памяти с теми же контрактами, что и PostgreSQL-репозитории.
// Используется в тестах сервисов и HTTP-слоя.
package memory

import (
	"context"
	"sync"

	"delivery-system/internal/entities"
	"delivery-system/internal/repositories"
)

type state struct {
	catalogs      map[string]map[uint64]string // таблица -> id -> подпись
	nextCatalogID map[string]uint64
	deliveries    map[uint64]entities.Delivery
	nextDelivery  uint64
}

func newState() state {
	s := state{
		catalogs:      make(map[string]map[uint64]string),
		nextCatalogID: make(map[string]uint64),
		deliveries:    make(map[uint64]entities.Delivery),
	}
	for _, c := range entities.Catalogs() {
		s.catalogs[c.Table] = make(map[uint64]string)
	}
	return s
}

func (s state) clone() state {
	out := state{
		catalogs:      make(map[string]map[uint64]string, len(s.catalogs)),
		nextCatalogID: make(map[string]uint64, len(s.nextCatalogID)),
		deliveries:    make(map[uint64]entities.Delivery, len(s.deliveries)),
		nextDelivery:  s.nextDelivery,
	}
	for table, rows := range s.catalogs {
		copied := make(map[uint64]string, len(rows))
		for id, label := range rows {
			copied[id] = label
		}
		out.catalogs[table] = copied
	}
	for table, next := range s.nextCatalogID {
		out.nextCatalogID[table] = next
	}
	for id, d := range s.deliveries {
		out.deliveries[id] = cloneDelivery(d)
	}
	return out
}

func cloneDelivery(d entities.Delivery) entities.Delivery {
	d.ServiceID = cloneUint64(d.ServiceID)
	d.PackagingID = cloneUint64(d.PackagingID)
	d.CargoTypeID = cloneUint64(d.CargoTypeID)
	if d.Attachments != nil {
		v := *d.Attachments
		d.Attachments = &v
	}
	d.TransportModel, d.Service, d.Packaging = nil, nil, nil
	d.Status, d.TechnicalCondition, d.CargoType = nil, nil, nil
	return d
}

func cloneUint64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store хранит справочники и доставки. Транзакция держит блокировку
// всего хранилища и при ошибке откатывает состояние к снимку.
type Store struct {
	mu    sync.Mutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

type txKey struct{}

type txMarker struct{ store *Store }

func (s *Store) inTx(ctx context.Context) bool {
	m, ok := ctx.Value(txKey{}).(*txMarker)
	return ok && m.store == s
}

// access выполняет fn под блокировкой, если вызов идет не из транзакции.
func (s *Store) access(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.state)
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, &txMarker{store: s}))
}

func (s *Store) TxManager() repositories.TxManagerInterface { return s }

func (s *Store) Catalog(c entities.Catalog) repositories.CatalogRepositoryInterface {
	return &catalogRepository{store: s, catalog: c}
}

func (s *Store) Deliveries() repositories.DeliveryRepositoryInterface {
	return &deliveryRepository{store: s}
}

// CatalogRepositories возвращает репозитории всех справочников по коду.
func (s *Store) CatalogRepositories() map[string]repositories.CatalogRepositoryInterface {
	out := make(map[string]repositories.CatalogRepositoryInterface)
	for _, c := range entities.Catalogs() {
		out[c.Code] = s.Catalog(c)
	}
	return out
}
