package handler

import (
	"net/http"

	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	reads query.ReadModel
}

func NewUserHandler(reads query.ReadModel) *UserHandler {
	return &UserHandler{reads: reads}
}

// GetDebts 获取用户持有的债务 NFT
func (h *UserHandler) GetDebts(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}

	debts, err := h.reads.GetUserDebts(c.Request.Context(), addr)
	if err != nil {
		QueryErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", debts)
}

// GetTransactions 获取用户资金流水，新的在前
func (h *UserHandler) GetTransactions(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}

	records, err := h.reads.GetTransactions(c.Request.Context(), addr)
	if err != nil {
		QueryErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", records)
}

// GetReputation 获取用户信誉计数
func (h *UserHandler) GetReputation(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}

	rep, err := h.reads.GetReputation(c.Request.Context(), addr)
	if err != nil {
		QueryErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", rep)
}
