package controllers

import (
	"context"
	"net/http"
	"time"

	"delivery-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Pinger - то, что умеет проверить соединение (pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db     Pinger
	logger *zap.Logger
}

func NewHealthController(db Pinger, logger *zap.Logger) *HealthController {
	return &HealthController{db: db, logger: logger}
}

func (h *HealthController) Health(c echo.Context) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("база данных недоступна", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":  false,
				"message": "База данных недоступна",
			})
		}
	}
	return utils.SuccessResponse(c, map[string]string{"db": "ok"}, "OK", http.StatusOK)
}
