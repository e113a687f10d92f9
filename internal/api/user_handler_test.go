package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/service"
)

func setupUserRouter(users *mockUserService) http.Handler {
	h := NewUserHandler(users, mockJWTService{}, zap.NewNop())
	r := setupTestRouter()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.RefreshToken)
	return r
}

func newMockUsers() *mockUserService {
	return &mockUserService{users: map[int64]*domain.User{
		1: {ID: 1, Username: "cashier01", Role: domain.UserRoleStaff, IsActive: true, PasswordHash: "secret-hash"},
		2: {ID: 2, Username: "former", Role: domain.UserRoleStaff, IsActive: false},
	}}
}

func TestUserHandler_Login(t *testing.T) {
	r := setupUserRouter(newMockUsers())

	w, env := perform(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "cashier01", "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var login map[string]any
	_ = json.Unmarshal(env.Data, &login)
	if login["access_token"] != "access:cashier01" {
		t.Errorf("unexpected tokens: %v", login)
	}
	user, _ := login["user"].(map[string]any)
	if _, leaked := user["PasswordHash"]; leaked || user["username"] != "cashier01" {
		t.Errorf("unexpected user payload: %v", user)
	}

	w, _ = perform(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "cashier01"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing password: status = %d, want 400", w.Code)
	}

	w, env = perform(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "nobody", "password": "x"})
	if w.Code != http.StatusUnauthorized || env.Error != "invalid username or password" {
		t.Errorf("unknown user: status = %d, error = %q", w.Code, env.Error)
	}

	users := newMockUsers()
	users.loginErr = service.ErrUserInactive
	w, _ = perform(t, setupUserRouter(users), http.MethodPost, "/auth/login", map[string]string{"username": "former", "password": "x"})
	if w.Code != http.StatusForbidden {
		t.Errorf("inactive user: status = %d, want 403", w.Code)
	}
}

func TestUserHandler_RefreshToken(t *testing.T) {
	r := setupUserRouter(newMockUsers())

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"active user", "refresh:cashier01", http.StatusOK},
		{"inactive user", "refresh:former", http.StatusForbidden},
		{"expired token", "refresh:stale", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := perform(t, r, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": tt.token})
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
