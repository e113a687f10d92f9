// Package api 提供后台管理 HTTP 接口的 gin 处理器。
// 处理器只负责请求解析、调用服务与响应编码，错误统一经 writeError 映射为状态码与业务码。
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/courier/pathao"
	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// stockDetails 库存不足时返回的上下文
type stockDetails struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// upstreamDetails 快递上游失败时返回的上下文
type upstreamDetails struct {
	Status int    `json:"upstreamStatus"`
	Body   string `json:"upstreamBody,omitempty"`
}

// writeError 将服务层错误映射为统一失败响应，未识别的错误记日志并返回通用信息
func writeError(c *gin.Context, logger *zap.Logger, err error, op string) {
	reqID := middleware.GetRequestID(c)

	var (
		authErr     *pathao.AuthenticationError
		upstreamErr *pathao.UpstreamError
	)
	if v, ok := domain.AsValidation(err); ok {
		resp.ErrorWith(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, v.Error(),
			resp.ErrorBody{MissingFields: v.MissingFields}, reqID, "")
		return
	}
	if v, ok := domain.AsNotFound(err); ok {
		resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, v.Error(), reqID, "")
		return
	}
	if v, ok := domain.AsStock(err); ok {
		resp.ErrorWith(c.Writer, http.StatusBadRequest, resp.CodeInsufficientStock, v.Error(),
			resp.ErrorBody{Details: stockDetails{ProductID: v.ProductID, Title: v.Title, Required: v.Required, Available: v.Available}},
			reqID, "")
		return
	}
	if v, ok := domain.AsConflict(err); ok {
		resp.ErrorWith(c.Writer, http.StatusBadRequest, resp.CodeConflict, v.Error(),
			resp.ErrorBody{Details: map[string]string{"sku": v.SKU}}, reqID, "")
		return
	}

	switch {
	case errors.As(err, &authErr):
		logger.Warn("courier authentication failed", zap.String("op", op), zap.String("request_id", reqID), zap.Error(err))
		resp.ErrorWith(c.Writer, http.StatusBadGateway, resp.CodeUpstream, "courier authentication failed",
			resp.ErrorBody{Details: upstreamDetails{Status: authErr.Status, Body: authErr.Body}}, reqID, "")
	case errors.As(err, &upstreamErr):
		logger.Warn("courier request failed", zap.String("op", op), zap.String("request_id", reqID), zap.Error(err))
		resp.ErrorWith(c.Writer, http.StatusBadGateway, resp.CodeUpstream, "courier request failed",
			resp.ErrorBody{Details: upstreamDetails{Status: upstreamErr.Status, Body: upstreamErr.Body}}, reqID, "")
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidCredentials):
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid username or password", reqID, "")
	case errors.Is(err, service.ErrUserInactive):
		resp.Error(c.Writer, http.StatusForbidden, resp.CodeForbidden, "user is inactive", reqID, "")
	case errors.Is(err, service.ErrUserExists):
		resp.Error(c.Writer, http.StatusConflict, resp.CodeConflict, "username or email already exists", reqID, "")
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenExpired), errors.Is(err, service.ErrTokenNotReady):
		resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid or expired token", reqID, "")
	case errors.Is(err, context.DeadlineExceeded):
		resp.Error(c.Writer, http.StatusGatewayTimeout, resp.CodeTimeout, "request timeout", reqID, "")
	default:
		logger.Error(op+" failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError, op+" failed", reqID, "")
	}
}

// badRequest 写出请求格式错误
func badRequest(c *gin.Context, msg string) {
	resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, msg, middleware.GetRequestID(c), "")
}
