package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

const bearerPrefix = "Bearer "

// Auth JWT认证中间件
// 验证请求头中的访问令牌，将用户信息写入 gin 上下文，并把操作人写入请求上下文供审计使用
func Auth(jwtService service.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := GetRequestID(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("missing authorization header", zap.String("request_id", reqID))
			unauthorized(c, "authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			logger.Warn("invalid authorization header format", zap.String("request_id", reqID))
			unauthorized(c, "invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if tokenString == "" {
			unauthorized(c, "token required")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			logger.Warn("token validation failed", zap.String("request_id", reqID), zap.Error(err))
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				unauthorized(c, "token expired")
			case errors.Is(err, service.ErrTokenNotReady):
				unauthorized(c, "token not ready")
			default:
				unauthorized(c, "invalid token")
			}
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyUserRole, claims.Role)
		ctx := domain.ContextWithActor(c.Request.Context(), claims.Actor())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole 要求已认证用户具有指定角色
func RequireRole(requiredRole domain.UserRole, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := GetRequestID(c)
		userID := c.GetInt64(KeyUserID)
		if userID == 0 {
			logger.Error("user not found in context", zap.String("request_id", reqID))
			unauthorized(c, "authentication required")
			return
		}

		role, _ := c.Get(KeyUserRole)
		if r, _ := role.(domain.UserRole); r != requiredRole {
			logger.Warn("insufficient permissions",
				zap.String("request_id", reqID),
				zap.Int64("user_id", userID),
				zap.Any("user_role", role),
				zap.String("required_role", string(requiredRole)),
			)
			resp.Error(c.Writer, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions", reqID, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin 要求管理员角色
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	return RequireRole(domain.UserRoleAdmin, logger)
}

func unauthorized(c *gin.Context, msg string) {
	resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, msg, GetRequestID(c), "")
	c.Abort()
}
