package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragline/internal/ingest"
	"github.com/xxxsen/ragline/internal/pkg/errcode"
	"github.com/xxxsen/ragline/internal/pkg/response"
	"github.com/xxxsen/ragline/internal/repo"
	"github.com/xxxsen/ragline/internal/retrieval"
)

type DocumentHandler struct {
	ingest    *ingest.Service
	docs      *repo.DocumentRepo
	retriever *retrieval.Retriever
}

func NewDocumentHandler(svc *ingest.Service, docs *repo.DocumentRepo, retriever *retrieval.Retriever) *DocumentHandler {
	return &DocumentHandler{ingest: svc, docs: docs, retriever: retriever}
}

type ingestRequest struct {
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	SourcePath string            `json:"source_path"`
	Metadata   map[string]string `json:"metadata"`
}

type searchRequest struct {
	Query   string                 `json:"query"`
	TopK    int                    `json:"top_k"`
	Filters map[string]interface{} `json:"filters"`
}

func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Title == "" || req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "title and content are required")
		return
	}
	report, err := h.ingest.ProcessDocument(c.Request.Context(), &ingest.Request{
		ID:         req.DocumentID,
		Title:      req.Title,
		Content:    req.Content,
		SourcePath: req.SourcePath,
		Metadata:   req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}

func (h *DocumentHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	results, err := h.retriever.Search(c.Request.Context(), req.Query, req.TopK, req.Filters)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

func (h *DocumentHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if keyword := c.Query("q"); keyword != "" {
		docs, err := h.docs.SearchByTitle(c.Request.Context(), keyword, limit)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"documents": docs, "total": int64(len(docs))})
		return
	}
	docs, err := h.docs.List(c.Request.Context(), offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	total, err := h.docs.Count(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs, "total": total})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.ingest.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "deleted"})
}
