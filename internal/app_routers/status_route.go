package approuters

import (
	"nexchat/internal/configuration"
	"nexchat/internal/handler"

	"github.com/gin-gonic/gin"
)

func StatusRouters(router *gin.Engine, container *configuration.Container) {
	statusRoute := router.Group("/nx/api/status", handler.RequireUser())
	{
		statusRoute.POST("/create", container.StatusHandler.CreateStatus)
		statusRoute.GET("/active", container.StatusHandler.GetStatuses)
		statusRoute.POST("/view/:statusId", container.StatusHandler.ViewStatus)
		statusRoute.DELETE("/:statusId", container.StatusHandler.DeleteStatus)
	}
}
