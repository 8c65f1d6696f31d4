package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
)

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

// FailResponse 按错误类型选择状态码，消息为原始错误文本
func FailResponse(c *gin.Context, err error, data interface{}) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, Response{
		Success: false,
		Message: err.Error(),
		Data:    data,
	})
}

// StatusFor 错误到 HTTP 状态码的映射，其余错误视为链调用失败
func StatusFor(err error) int {
	switch {
	case errors.Is(err, logic.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrWalletNotConnected),
		errors.Is(err, wallet.ErrNotConnected),
		errors.Is(err, wallet.ErrNoCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, logic.ErrTransactionNotFound),
		errors.Is(err, logic.ErrTokenNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrFundingClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
