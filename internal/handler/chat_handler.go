package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/pkg/errcode"
	"github.com/xxxsen/ragline/internal/pkg/response"
	"github.com/xxxsen/ragline/internal/rag"
)

type ChatHandler struct {
	rag *rag.Service
}

func NewChatHandler(svc *rag.Service) *ChatHandler {
	return &ChatHandler{rag: svc}
}

type chatRequest struct {
	Message        string                   `json:"message"`
	Context        string                   `json:"context"`
	ConversationID string                   `json:"conversation_id"`
	History        []model.ConversationTurn `json:"history"`
}

type queryRequest struct {
	Query   string                   `json:"query"`
	Context string                   `json:"context"`
	History []model.ConversationTurn `json:"history"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Message == "" {
		response.Error(c, errcode.ErrInvalid, "message is required")
		return
	}
	bundle, err := h.rag.Chat(c.Request.Context(), req.Message, req.ConversationID, req.History)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"response":        bundle.Response,
		"conversation_id": bundle.ConversationID,
		"sources":         bundle.Sources,
		"timestamp":       bundle.Timestamp,
	})
}

func (h *ChatHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	bundle, err := h.rag.ProcessQuery(c.Request.Context(), req.Query, req.Context, req.History)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"answer":       bundle.Response,
		"sources":      bundle.Sources,
		"context_used": bundle.Context,
		"timestamp":    bundle.Timestamp,
	})
}
