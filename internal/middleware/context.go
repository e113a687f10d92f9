// Package middleware 提供 gin 中间件：请求 ID、恢复、超时、CORS、访问日志、认证与幂等。
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// contextKey 用于在上下文中存取特定键，避免与外部键冲突。
type contextKey string

const contextKeyRequestID contextKey = "request_id"

// gin.Context 中约定的键
const (
	KeyRequestID = "request_id"
	KeyUserID    = "user_id"
	KeyUsername  = "username"
	KeyUserRole  = "user_role"
)

// withRequestID 将请求 ID 写入上下文。
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）。
func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return s
	}
	return ""
}

// GetRequestID 从 gin 上下文读取请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(KeyRequestID)
}
