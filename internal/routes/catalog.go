package routes

import (
	"github.com/labstack/echo/v4"

	"delivery-system/internal/controllers"
)

func runCatalogRouter(api *echo.Group, code string, ctrl *controllers.CatalogController) {
	group := api.Group("/" + code)
	group.GET("", ctrl.GetItems)
	group.POST("", ctrl.CreateItem)
	group.GET("/:id", ctrl.FindItem)
	group.PUT("/:id", ctrl.UpdateItem)
	group.PATCH("/:id", ctrl.PatchItem)
	group.DELETE("/:id", ctrl.DeleteItem)
}
