package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/Howters/ArisanOnChain-sub000/internal/reconcile"
	"github.com/gin-gonic/gin"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// QueryErrorResponse 将查询错误映射为 HTTP 状态码
func QueryErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, query.ErrPoolNotFound):
		ErrorResponse(c, http.StatusNotFound, "pool not found")
	case errors.Is(err, reconcile.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		ErrorResponse(c, http.StatusServiceUnavailable, "data temporarily unavailable")
	default:
		logger.Error("Unexpected query error on %s: %v", c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}

// addressParam 校验路径中的地址
func addressParam(c *gin.Context) (string, bool) {
	addr, err := model.ParseAddress(c.Param("address"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return addr, true
}

// userQuery reads the optional ?user= filter.
func userQuery(c *gin.Context) (string, bool) {
	raw := c.Query("user")
	if raw == "" {
		return "", true
	}
	user, err := model.ParseAddress(raw)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return user, true
}
