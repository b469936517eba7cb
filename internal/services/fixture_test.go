package services

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"
	"time"

	"delivery-system/internal/dto"
	"delivery-system/internal/entities"
	"delivery-system/internal/repositories"
	"delivery-system/internal/repositories/memory"
	"delivery-system/pkg/filestorage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testContext mirrors testing.T.Context (Go 1.24+): a context that is
// cancelled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store      *memory.Store
	catalogs   map[string]CatalogServiceInterface // код справочника -> сервис
	ids        map[string]uint64                  // поле ссылки -> id первой записи
	deliveries *DeliveryService
	files      *filestorage.LocalFileStorage
	clock      *fakeClock
}

const testMediaURL = "/media"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()

	files, err := filestorage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		catalogs: make(map[string]CatalogServiceInterface),
		ids:      make(map[string]uint64),
		files:    files,
		clock:    &fakeClock{now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)},
	}

	var repos []repositories.CatalogRepositoryInterface
	for _, c := range entities.Catalogs() {
		repo := store.Catalog(c)
		repos = append(repos, repo)
		f.catalogs[c.Code] = NewCatalogService(repo, store.Deliveries(), store.TxManager(), nil, time.Minute, 255, logger)
	}
	f.deliveries = NewDeliveryService(store.Deliveries(), repos, store.TxManager(), files, testMediaURL, logger).
		WithClock(f.clock.Now)

	return f
}

// seed создает по одной записи в каждом справочнике.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	for _, c := range entities.Catalogs() {
		f.ids[c.RefField] = f.createItem(t, c, c.Title)
	}
}

func (f *fixture) createItem(t *testing.T, c entities.Catalog, label string) uint64 {
	t.Helper()
	item, err := f.catalogs[c.Code].CreateItem(testContext(t), dto.CatalogPayloadDTO{Label: &label})
	require.NoError(t, err)
	return item.ID
}

// payload собирает JSON write-формы и разбирает его как HTTP-слой.
// Значение nil в overrides удаляет поле из тела.
func (f *fixture) payload(t *testing.T, overrides map[string]interface{}) dto.DeliveryWriteDTO {
	t.Helper()
	body := map[string]interface{}{
		dto.FieldTransportModelID:     f.ids[dto.FieldTransportModelID],
		dto.FieldTransportNumber:      "A123BC",
		dto.FieldDispatchDatetime:     "2024-01-15T10:00:00Z",
		dto.FieldDeliveryDatetime:     "2024-01-16T12:30:00Z",
		dto.FieldDistance:             "150 км",
		dto.FieldServiceID:            f.ids[dto.FieldServiceID],
		dto.FieldPackagingID:          f.ids[dto.FieldPackagingID],
		dto.FieldStatusID:             f.ids[dto.FieldStatusID],
		dto.FieldTechnicalConditionID: f.ids[dto.FieldTechnicalConditionID],
		dto.FieldCollector:            "Иванов И.И.",
		dto.FieldComment:              "",
		dto.FieldCargoTypeID:          f.ids[dto.FieldCargoTypeID],
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	return f.decode(t, body)
}

func (f *fixture) decode(t *testing.T, body map[string]interface{}) dto.DeliveryWriteDTO {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	payload, err := dto.DecodeDeliveryJSON(raw)
	require.NoError(t, err)
	return payload
}

// fileHeader готовит *multipart.FileHeader так же, как его получает echo.
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(dto.FieldAttachments, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[dto.FieldAttachments][0]
}

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
