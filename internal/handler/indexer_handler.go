package handler

import (
	"context"
	"net/http"

	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/monitor"
	"github.com/gin-gonic/gin"
)

// StatusProvider reports the sync position of the indexer.
type StatusProvider interface {
	Status(ctx context.Context) (*monitor.Status, error)
}

type IndexerHandler struct {
	status StatusProvider
}

// NewIndexerHandler creates the handler. status is nil when the indexer is disabled.
func NewIndexerHandler(status StatusProvider) *IndexerHandler {
	return &IndexerHandler{status: status}
}

// GetStatus 获取同步状态
func (h *IndexerHandler) GetStatus(c *gin.Context) {
	if h.status == nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "indexer disabled")
		return
	}

	status, err := h.status.Status(c.Request.Context())
	if err != nil {
		logger.Error("Failed to read indexer status: %v", err)
		ErrorResponse(c, http.StatusServiceUnavailable, "indexer status unavailable")
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", status)
}
