package handler

import (
	"net/http"
	"strconv"

	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/gin-gonic/gin"
)

type PoolHandler struct {
	reads query.ReadModel
}

func NewPoolHandler(reads query.ReadModel) *PoolHandler {
	return &PoolHandler{reads: reads}
}

// GetPools 获取池列表，可按 user 过滤
func (h *PoolHandler) GetPools(c *gin.Context) {
	user, ok := userQuery(c)
	if !ok {
		return
	}

	pools, err := h.reads.GetPools(c.Request.Context(), user)
	if err != nil {
		QueryErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", pools)
}

// GetPool 获取单个池详情
func (h *PoolHandler) GetPool(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid pool id")
		return
	}
	user, ok := userQuery(c)
	if !ok {
		return
	}

	detail, err := h.reads.GetPoolDetail(c.Request.Context(), id, user)
	if err != nil {
		QueryErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", detail)
}
