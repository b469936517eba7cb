package routes

import (
	"github.com/labstack/echo/v4"

	"delivery-system/internal/controllers"
)

func runDeliveryRouter(api *echo.Group, ctrl *controllers.DeliveryController) {
	group := api.Group("/deliveries")
	group.GET("", ctrl.GetDeliveries)
	group.POST("", ctrl.CreateDelivery)
	group.GET("/export", ctrl.ExportDeliveries)
	group.GET("/:id", ctrl.FindDelivery)
	group.PUT("/:id", ctrl.UpdateDelivery)
	group.PATCH("/:id", ctrl.PatchDelivery)
	group.DELETE("/:id", ctrl.DeleteDelivery)
}
