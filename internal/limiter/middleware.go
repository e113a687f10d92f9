package limiter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/resp"
)

// 限流响应头
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Limiter Limiter

	// KeyGenerator 生成限流Key，默认按客户端IP
	KeyGenerator func(*gin.Context) string

	// Message 被限流时返回的提示
	Message string

	// Skip 返回 true 时跳过限流检查
	Skip func(*gin.Context) bool

	// Timeout 单次限流检查的超时时间
	Timeout time.Duration

	Logger *zap.Logger
}

// KeyByIP 按客户端IP生成Key
func KeyByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// KeyByUser 已登录时按用户生成Key，否则按IP
func KeyByUser(c *gin.Context) string {
	if userID := c.GetInt64("user_id"); userID > 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	return KeyByIP(c)
}

// RateLimitMiddleware 创建限流中间件。
// 限流器本身出错时放行请求并记录日志，Redis 故障不阻断后台操作。
func RateLimitMiddleware(config MiddlewareConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = KeyByIP
	}
	if config.Message == "" {
		config.Message = "too many requests, please retry later"
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if config.Skip != nil && config.Skip(c) {
			c.Next()
			return
		}

		key := config.KeyGenerator(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()

		result, err := config.Limiter.Allow(ctx, key)
		if err != nil {
			config.Logger.Warn("rate limiter unavailable",
				zap.String("key", key),
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
				config.Message, c.GetString("request_id"), "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *LimitResult) {
	if result.Limit > 0 {
		c.Header(HeaderLimit, strconv.FormatInt(result.Limit, 10))
	}
	c.Header(HeaderRemaining, strconv.FormatInt(result.Remaining, 10))
	if !result.Allowed && result.RetryAfter > 0 {
		c.Header(HeaderRetryAfter, strconv.FormatInt(int64(result.RetryAfter/time.Second), 10))
	}
}

// LoginRateLimitMiddleware 登录接口按IP限流
func LoginRateLimitMiddleware(l Limiter, logger *zap.Logger) gin.HandlerFunc {
	return RateLimitMiddleware(MiddlewareConfig{
		Limiter: l,
		KeyGenerator: func(c *gin.Context) string {
			return "login:" + KeyByIP(c)
		},
		Message: "too many login attempts, please retry later",
		Logger:  logger,
	})
}

// APIRateLimitMiddleware 业务接口按用户限流
func APIRateLimitMiddleware(l Limiter, logger *zap.Logger) gin.HandlerFunc {
	return RateLimitMiddleware(MiddlewareConfig{
		Limiter: l,
		KeyGenerator: func(c *gin.Context) string {
			return "api:" + KeyByUser(c)
		},
		Skip: func(c *gin.Context) bool {
			return c.Request.Method == http.MethodOptions
		},
		Logger: logger,
	})
}
