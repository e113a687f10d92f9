package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/service"
)

type mockOrderService struct {
	createFunc func(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderView, error)
	updateFunc func(ctx context.Context, id string, req *domain.UpdateOrderRequest) (*domain.OrderView, error)
	deleteFunc func(ctx context.Context, id string) error
	getFunc    func(ctx context.Context, id string) (*domain.OrderView, error)
	listFunc   func(ctx context.Context, req *domain.OrderListRequest) (*domain.OrderListResponse, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderView, error) {
	return m.createFunc(ctx, req)
}

func (m *mockOrderService) UpdateOrder(ctx context.Context, id string, req *domain.UpdateOrderRequest) (*domain.OrderView, error) {
	return m.updateFunc(ctx, id, req)
}

func (m *mockOrderService) DeleteOrder(ctx context.Context, id string) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id string) (*domain.OrderView, error) {
	return m.getFunc(ctx, id)
}

func (m *mockOrderService) ListOrders(ctx context.Context, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	return m.listFunc(ctx, req)
}

type mockImportService struct {
	importFunc func(ctx context.Context, candidates []domain.ProductCandidate, mode domain.ImportMode, prefix string) (*domain.BulkImportResult, error)
}

func (m *mockImportService) Import(ctx context.Context, candidates []domain.ProductCandidate, mode domain.ImportMode, prefix string) (*domain.BulkImportResult, error) {
	return m.importFunc(ctx, candidates, mode, prefix)
}

type mockCourierService struct {
	sendFunc    func(ctx context.Context, orderID string) (*domain.Order, error)
	batchFunc   func(ctx context.Context, orderIDs []string) *service.BatchDispatchResult
	refreshFunc func(ctx context.Context, orderID string) (*domain.Order, error)
}

func (m *mockCourierService) SendOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.sendFunc(ctx, orderID)
}

func (m *mockCourierService) SendOrders(ctx context.Context, orderIDs []string) *service.BatchDispatchResult {
	return m.batchFunc(ctx, orderIDs)
}

func (m *mockCourierService) RefreshStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.refreshFunc(ctx, orderID)
}

type mockUserService struct {
	users    map[int64]*domain.User
	loginErr error
}

func (m *mockUserService) CreateUser(_ context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	u := &domain.User{ID: int64(len(m.users) + 1), Username: req.Username, Email: req.Email, Role: domain.UserRoleStaff, IsActive: true}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserService) Login(_ context.Context, req *domain.LoginRequest) (*domain.User, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	for _, u := range m.users {
		if u.Username == req.Username {
			return u, nil
		}
	}
	return nil, service.ErrUserNotFound
}

func (m *mockUserService) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, service.ErrUserNotFound
}

func (m *mockUserService) EnsureAdmin(context.Context, string, string, string) error { return nil }

// mockJWTService 令牌形如 "<type>:<username>"
type mockJWTService struct{}

func (mockJWTService) GenerateTokenPair(user *domain.User) (*service.TokenPair, error) {
	return &service.TokenPair{
		AccessToken:  "access:" + user.Username,
		RefreshToken: "refresh:" + user.Username,
	}, nil
}

func (mockJWTService) ValidateAccessToken(string) (*service.Claims, error) {
	return nil, service.ErrInvalidToken
}

func (mockJWTService) ValidateRefreshToken(token string) (*service.Claims, error) {
	switch token {
	case "refresh:cashier01":
		return &service.Claims{UserID: 1, Username: "cashier01", Type: "refresh"}, nil
	case "refresh:former":
		return &service.Claims{UserID: 2, Username: "former", Type: "refresh"}, nil
	}
	return nil, service.ErrTokenExpired
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

// envelope 统一响应体的测试视图
type envelope struct {
	Success       bool            `json:"success"`
	Code          int             `json:"code"`
	Error         string          `json:"error"`
	Data          json.RawMessage `json:"data"`
	MissingFields []string        `json:"missingFields"`
	Details       json.RawMessage `json:"details"`
	RequestID     string          `json:"request_id"`
}

func perform(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}
