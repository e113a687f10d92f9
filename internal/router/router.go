// Package router 组装 gin 路由与中间件
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/api"
	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/config"
	"github.com/MorseWayne/retail_admin/internal/limiter"
	mw "github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// HealthFunc 检查下游依赖，返回 nil 表示健康
type HealthFunc func(ctx context.Context) error

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	UserHandler     *api.UserHandler
	OrderHandler    *api.OrderHandler
	ProductHandler  *api.ProductHandler
	CustomerHandler *api.CustomerHandler
	PathaoHandler   *api.PathaoHandler
	AuditHandler    *api.AuditHandler
	JWTService      service.JWTService

	// Cache 存放幂等键，为 nil 时不做幂等检查
	Cache cache.Cache

	// 限流器为 nil 时不启用对应限流
	LoginLimiter limiter.Limiter
	APILimiter   limiter.Limiter

	// Health 各依赖的健康检查
	Health map[string]HealthFunc
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	cfg    *config.Config
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r.engine = gin.New()
	r.cfg = cfg
	r.deps = deps
	r.logger = lg

	r.setupMiddleware()
	r.setupRoutes()
	return r.engine
}

// setupMiddleware 请求进入时依次经过 request ID → access log → recovery → CORS → timeout
func (r *GinRouter) setupMiddleware() {
	r.engine.Use(
		mw.RequestID(),
		mw.AccessLog(r.logger),
		mw.Recovery(r.logger),
		mw.CORS(r.cfg.CORS),
		mw.Timeout(r.cfg.App.RequestTimeout),
	)
	r.engine.NoRoute(func(c *gin.Context) {
		resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "route not found", mw.GetRequestID(c), "")
	})
}

func (r *GinRouter) setupRoutes() {
	d := r.deps
	r.engine.GET("/healthz", r.healthCheck)

	v1 := r.engine.Group("/api/v1")

	// 认证路由（无需认证）
	auth := v1.Group("/auth")
	if d.LoginLimiter != nil {
		auth.Use(limiter.LoginRateLimitMiddleware(d.LoginLimiter, r.logger))
	}
	auth.POST("/login", d.UserHandler.Login)
	auth.POST("/refresh", d.UserHandler.RefreshToken)

	// 其余接口均需登录
	secured := v1.Group("")
	secured.Use(mw.Auth(d.JWTService, r.logger))
	if d.APILimiter != nil {
		secured.Use(limiter.APIRateLimitMiddleware(d.APILimiter, r.logger))
	}
	adminOnly := mw.RequireAdmin(r.logger)

	users := secured.Group("/users")
	users.GET("/me", d.UserHandler.GetProfile)
	users.POST("", adminOnly, d.UserHandler.CreateUser)

	orders := secured.Group("/orders")
	orders.GET("", d.OrderHandler.ListOrders)
	orders.POST("", r.idempotent("orders"), d.OrderHandler.CreateOrder)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.PUT("/:id", d.OrderHandler.UpdateOrder)
	orders.DELETE("/:id", d.OrderHandler.DeleteOrder)

	products := secured.Group("/products")
	products.GET("", d.ProductHandler.ListProducts)
	products.POST("", d.ProductHandler.CreateProduct)
	products.POST("/bulk", d.ProductHandler.BulkImport)
	products.GET("/alerts/low-stock", d.ProductHandler.LowStockAlerts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.PUT("/:id", d.ProductHandler.UpdateProduct)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct)

	customers := secured.Group("/customers")
	customers.GET("", d.CustomerHandler.ListCustomers)
	customers.GET("/:id", d.CustomerHandler.GetCustomer)

	courier := secured.Group("/pathao")
	courier.POST("/send-order", r.idempotent("pathao"), d.PathaoHandler.SendOrder)
	courier.POST("/send-orders", d.PathaoHandler.SendOrders)
	courier.POST("/update-status", d.PathaoHandler.UpdateStatus)

	secured.GET("/audit-logs", adminOnly, d.AuditHandler.ListAuditLogs)
}

// idempotent 为指定接口启用幂等键检查
func (r *GinRouter) idempotent(scope string) gin.HandlerFunc {
	return mw.Idempotency(mw.IdempotencyConfig{
		Cache:  r.deps.Cache,
		TTL:    r.cfg.Idempotency.TTL,
		Scope:  scope,
		Logger: r.logger,
	})
}

// healthCheck 检查各依赖，任一失败返回 503
func (r *GinRouter) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(r.deps.Health))
	healthy := true
	for name, check := range r.deps.Health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	data := map[string]any{
		"status":  "ok",
		"version": r.cfg.App.Version,
		"checks":  checks,
	}
	if !healthy {
		data["status"] = "degraded"
		resp.WriteJSON(c.Writer, http.StatusServiceUnavailable, resp.CodeOK, "degraded", data, mw.GetRequestID(c), "")
		return
	}
	resp.OK(c.Writer, data, mw.GetRequestID(c), "")
}
