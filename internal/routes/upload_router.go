package routes

import (
	"github.com/labstack/echo/v4"

	"delivery-system/internal/controllers"
)

func runUploadRouter(api *echo.Group, ctrl *controllers.UploadController) {
	api.POST("/upload-file", ctrl.Upload)
}
