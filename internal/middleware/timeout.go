package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/retail_admin/internal/resp"
)

// Timeout 为请求上下文设置截止时间。
// 处理器在截止后仍未写出响应时返回统一的超时响应。
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp.Error(c.Writer, resp.HTTPStatusFromCode(resp.CodeTimeout), resp.CodeTimeout,
				"request timeout", GetRequestID(c), "")
		}
	}
}
