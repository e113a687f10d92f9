package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/resp"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

// IdempotencyConfig 幂等中间件配置
type IdempotencyConfig struct {
	Cache cache.Cache
	TTL   time.Duration

	// Scope 区分不同接口的键空间
	Scope  string
	Logger *zap.Logger
}

type idempotencyMarker struct {
	RequestID string    `json:"request_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Idempotency 对携带 X-Idempotency-Key 的请求做去重：
// TTL 内同一用户重复提交相同键返回 409。未携带该头的请求直接放行。
// 处理失败（5xx）时释放键以便客户端重试。
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" || cfg.Cache == nil {
			c.Next()
			return
		}

		userID := c.GetInt64(KeyUserID)
		cacheKey := cache.IdempotencyKey(cfg.Scope, fmt.Sprintf("%d:%s", userID, key))
		marker := idempotencyMarker{RequestID: GetRequestID(c), UserID: userID, CreatedAt: time.Now().UTC()}

		ok, err := cfg.Cache.SetNX(c.Request.Context(), cacheKey, marker, cfg.TTL)
		if err != nil {
			cfg.Logger.Warn("idempotency check failed",
				zap.String("key", cacheKey),
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			resp.Error(c.Writer, http.StatusConflict, resp.CodeDuplicateRequest, "duplicate request", GetRequestID(c), "")
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := cfg.Cache.Del(context.WithoutCancel(c.Request.Context()), cacheKey); err != nil {
				cfg.Logger.Warn("failed to release idempotency key", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}
}
