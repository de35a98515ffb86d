package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Chat       *ChatHandler
	Properties *PropertiesHandler
	Metrics    http.Handler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/properties", deps.Properties.Get)

	api.POST("/sessions", deps.Chat.CreateSession)
	api.POST("/sessions/:id/messages", deps.Chat.Ask)
	api.GET("/sessions/:id/messages", deps.Chat.History)
	api.DELETE("/sessions/:id/messages", deps.Chat.Reset)

	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}
