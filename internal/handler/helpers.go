package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragline/internal/pkg/errcode"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/pkg/response"
	"go.uber.org/zap"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, errs.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, errs.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, errs.ErrChunking):
		response.Error(c, errcode.ErrChunking, "document content not usable")
	case errors.Is(err, errs.ErrEmbedding):
		response.Error(c, errcode.ErrEmbedding, "embedding failed")
	case errors.Is(err, errs.ErrIndexUnavailable):
		response.Error(c, errcode.ErrIndexUnavailable, "vector index unavailable")
	case errors.Is(err, errs.ErrIndexWrite):
		response.Error(c, errcode.ErrIndexWrite, "vector index write failed")
	case errors.Is(err, errs.ErrRetrieval):
		response.Error(c, errcode.ErrRetrieval, "retrieval failed")
	case errors.Is(err, errs.ErrGeneration):
		response.Error(c, errcode.ErrGeneration, "generation failed")
	case errors.Is(err, errs.ErrQueryProcessing):
		response.Error(c, errcode.ErrQueryProcessing, "query processing failed")
	default:
		response.Error(c, errcode.ErrUnknown, "internal error")
	}
}
