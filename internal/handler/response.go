package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/token"
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

// EngineErrorResponse 引擎错误按分类映射HTTP状态码
func EngineErrorResponse(c *gin.Context, err error) {
	ErrorResponse(c, statusFromError(err), err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrProjectNotFound),
		errors.Is(err, engine.ErrNoInvestment):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateProject),
		errors.Is(err, engine.ErrAlreadyVoted),
		errors.Is(err, engine.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidUnits),
		errors.Is(err, engine.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrNotVotingWindow),
		errors.Is(err, engine.ErrNotRefundWindow),
		errors.Is(err, engine.ErrFundingEnded),
		errors.Is(err, engine.ErrNotYetClaimed),
		errors.Is(err, engine.ErrInsufficientTokens):
		return http.StatusUnprocessableEntity
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientCustody):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
