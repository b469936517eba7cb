package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	apperrors "delivery-system/pkg/errors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFilterFromQuery(t *testing.T) {
	t.Run("по умолчанию без пагинации", func(t *testing.T) {
		f := ParseFilterFromQuery(url.Values{})
		assert.False(t, f.WithPagination)
		assert.Equal(t, DefaultLimit, f.Limit)
		assert.Equal(t, 1, f.Page)
		assert.Equal(t, 0, f.Offset)
	})

	t.Run("страница и лимит", func(t *testing.T) {
		f := ParseFilterFromQuery(url.Values{
			"withPagination": {"true"},
			"limit":          {"20"},
			"page":           {"3"},
			"search":         {"  груз "},
		})
		assert.True(t, f.WithPagination)
		assert.Equal(t, 20, f.Limit)
		assert.Equal(t, 40, f.Offset)
		assert.Equal(t, "груз", f.Search)
	})

	t.Run("лимит ограничен сверху", func(t *testing.T) {
		f := ParseFilterFromQuery(url.Values{"limit": {"100000"}})
		assert.Equal(t, MaxLimit, f.Limit)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorResponse(t *testing.T) {
	e := echo.New()
	logger := zap.NewNop()

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"не найдено", apperrors.ErrNotFound, http.StatusNotFound},
		{"обернутое не найдено", fmt.Errorf("поиск: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"конфликт", apperrors.ErrCatalogInUse, http.StatusConflict},
		{"плохой запрос", apperrors.ErrBadRequest, http.StatusBadRequest},
		{"плохой файл", fmt.Errorf("%w: пустой", apperrors.ErrInvalidFile), http.StatusBadRequest},
		{"валидация", apperrors.FieldError("status_id", "Обязательное поле."), http.StatusBadRequest},
		{"http ошибка", apperrors.NewHttpError(http.StatusTeapot, "чайник", nil, nil), http.StatusTeapot},
		{"неизвестная", fmt.Errorf("сломалось"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, ErrorResponse(c, tc.err, logger))
			assert.Equal(t, tc.code, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, false, body["status"])
		})
	}

	t.Run("поля валидации в body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		verr := apperrors.NewValidationError()
		verr.Add("status_id", "Обязательное поле.")
		verr.Add("distance", "Это поле не может быть пустым.")
		require.NoError(t, ErrorResponse(c, verr, logger))

		body := decodeEnvelope(t, rec)
		fields, ok := body["body"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Обязательное поле.", fields["status_id"])
		assert.Contains(t, fields, "distance")
	})
}

func TestSuccessResponse_Pagination(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?withPagination=true&limit=2&page=2", nil), rec)
	require.NoError(t, SuccessResponse(c, []int{3, 4}, "ok", http.StatusOK, 5))

	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["status"])
	payload := body["body"].(map[string]interface{})
	assert.Len(t, payload["list"], 2)
	pagination := payload["pagination"].(map[string]interface{})
	assert.EqualValues(t, 5, pagination["total_count"])
	assert.EqualValues(t, 3, pagination["total_pages"])
	assert.EqualValues(t, 2, pagination["page"])

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, SuccessResponse(c, []int{1, 2, 3}, "ok", http.StatusOK, 3))
	body = decodeEnvelope(t, rec)
	assert.Len(t, body["body"], 3)
}
