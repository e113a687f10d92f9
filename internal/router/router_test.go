package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/api"
	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/config"
	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/limiter"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// denyLimiter 拒绝全部请求
type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (*limiter.LimitResult, error) {
	return &limiter.LimitResult{Allowed: false, Limit: 1, RetryAfter: time.Minute}, nil
}

func (l denyLimiter) AllowN(ctx context.Context, key string, _ int64) (*limiter.LimitResult, error) {
	return l.Allow(ctx, key)
}

func (denyLimiter) Reset(context.Context, string) error { return nil }

func (denyLimiter) GetInfo(context.Context, string) (*limiter.LimitInfo, error) {
	return &limiter.LimitInfo{Limit: 1}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Version: "test", RequestTimeout: 5 * time.Second},
		JWT: config.JWTConfig{Secret: "router-test-secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: 2 * time.Hour},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Idempotency: config.IdempotencyConfig{TTL: time.Minute},
	}
}

// setupTestRouter 处理器背后的服务均为 nil，只验证在到达处理器之前就结束的路径
func setupTestRouter(cfg *config.Config, mutate func(*Dependencies)) (http.Handler, service.JWTService) {
	gin.SetMode(gin.TestMode)
	lg := zap.NewNop()
	jwtService := service.NewJWTService(cfg, lg)
	deps := &Dependencies{
		UserHandler:     api.NewUserHandler(nil, jwtService, lg),
		OrderHandler:    api.NewOrderHandler(nil, lg),
		ProductHandler:  api.NewProductHandler(nil, nil, lg),
		CustomerHandler: api.NewCustomerHandler(nil, lg),
		PathaoHandler:   api.NewPathaoHandler(nil, lg),
		AuditHandler:    api.NewAuditHandler(nil, lg),
		JWTService:      jwtService,
		Cache:           cache.NewMemoryCache(),
	}
	if mutate != nil {
		mutate(deps)
	}
	return New().Setup(cfg, deps, lg), jwtService
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h, _ := setupTestRouter(testConfig(), func(d *Dependencies) {
		d.Health = map[string]HealthFunc{"cache": func(context.Context) error { return nil }}
	})

	w := serve(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthz_Degraded(t *testing.T) {
	h, _ := setupTestRouter(testConfig(), func(d *Dependencies) {
		d.Health = map[string]HealthFunc{
			"database": func(context.Context) error { return errors.New("connection refused") },
		}
	})

	w := serve(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h, _ := setupTestRouter(testConfig(), nil)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodPut, "/api/v1/orders/abc"},
		{http.MethodDelete, "/api/v1/orders/abc"},
		{http.MethodPost, "/api/v1/products/bulk"},
		{http.MethodGet, "/api/v1/products/alerts/low-stock"},
		{http.MethodGet, "/api/v1/customers"},
		{http.MethodPost, "/api/v1/pathao/send-order"},
		{http.MethodPost, "/api/v1/pathao/send-orders"},
		{http.MethodPost, "/api/v1/pathao/update-status"},
		{http.MethodGet, "/api/v1/audit-logs"},
		{http.MethodGet, "/api/v1/users/me"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := serve(h, rt.method, rt.path, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAdminRoutesRejectStaff(t *testing.T) {
	h, jwtService := setupTestRouter(testConfig(), nil)
	pair, err := jwtService.GenerateTokenPair(&domain.User{ID: 7, Username: "cashier01", Role: domain.UserRoleStaff})
	require.NoError(t, err)

	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/audit-logs"},
		{http.MethodPost, "/api/v1/users"},
	} {
		w := serve(h, rt.method, rt.path, pair.AccessToken)
		assert.Equal(t, http.StatusForbidden, w.Code, rt.path)
	}
}

func TestLoginRateLimited(t *testing.T) {
	h, _ := setupTestRouter(testConfig(), func(d *Dependencies) {
		d.LoginLimiter = denyLimiter{}
	})

	w := serve(h, http.MethodPost, "/api/v1/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestAPIRateLimitedAfterAuth(t *testing.T) {
	h, jwtService := setupTestRouter(testConfig(), func(d *Dependencies) {
		d.APILimiter = denyLimiter{}
	})
	pair, err := jwtService.GenerateTokenPair(&domain.User{ID: 7, Username: "cashier01", Role: domain.UserRoleStaff})
	require.NoError(t, err)

	w := serve(h, http.MethodGet, "/api/v1/orders", pair.AccessToken)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	h, _ := setupTestRouter(testConfig(), nil)

	w := serve(h, http.MethodGet, "/api/v1/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
}

func TestCORSPreflight(t *testing.T) {
	h, _ := setupTestRouter(testConfig(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://admin.shop.test")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
