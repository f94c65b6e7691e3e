package approuters

import (
	"nexchat/internal/configuration"
	"nexchat/internal/handler"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/nx/api/chat", handler.RequireUser())
	{
		chatRoute.POST("/send-message", container.ChatHandler.SendMessage)
		chatRoute.GET("/conversations", container.ChatHandler.GetConversations)
		chatRoute.GET("/messages/:conversationId", container.ChatHandler.GetMessages)
		chatRoute.POST("/mark-read", container.ChatHandler.MarkRead)
		chatRoute.DELETE("/messages/:messageId", container.ChatHandler.DeleteMessage)
	}
}
