package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragline/internal/pkg/response"
)

type RouterDeps struct {
	Chat      *ChatHandler
	Documents *DocumentHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/chat", deps.Chat.Chat)
	api.POST("/query", deps.Chat.Query)

	api.POST("/documents/ingest", deps.Documents.Ingest)
	api.POST("/documents/search", deps.Documents.Search)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.DELETE("/documents/:id", deps.Documents.Delete)

	api.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "healthy"})
	})
}
