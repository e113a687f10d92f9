package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/config"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())
	var fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromCtx = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(HeaderRequestID)
	if generated == "" || generated != fromCtx {
		t.Errorf("generated id %q, context id %q", generated, fromCtx)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(HeaderRequestID) != "req-123" {
		t.Errorf("incoming id not preserved: %q", w.Header().Get(HeaderRequestID))
	}
}

func TestRecovery(t *testing.T) {
	r := newEngine(RequestID(), Recovery(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestTimeout(t *testing.T) {
	r := newEngine(Timeout(10 * time.Millisecond))
	r.GET("/", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("Expected 504, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		AllowedOrigins: []string{"https://admin.shop.test"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
	}
	r := newEngine(CORS(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://admin.shop.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://admin.shop.test" {
		t.Errorf("unexpected allow origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin should not be allowed")
	}
}

func TestIdempotency(t *testing.T) {
	store := cache.NewMemoryCache()
	calls := 0
	status := http.StatusCreated
	r := newEngine(RequestID(), Idempotency(IdempotencyConfig{Cache: store, TTL: time.Minute, Scope: "orders"}))
	r.POST("/orders", func(c *gin.Context) {
		calls++
		c.Status(status)
	})

	post := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := post("k1"); code != http.StatusCreated {
		t.Fatalf("first: expected 201, got %d", code)
	}
	if code := post("k1"); code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", code)
	}
	if code := post(""); code != http.StatusCreated {
		t.Errorf("no key: expected 201, got %d", code)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}

	// 失败的请求释放键
	status = http.StatusInternalServerError
	post("k2")
	exists, _ := store.Exists(context.Background(), cache.IdempotencyKey("orders", "0:k2"))
	if exists {
		t.Error("key should be released after 5xx")
	}
}
