package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

func createTestUserService() (UserService, *mockUserRepository, *mockAuditRepository) {
	userRepo := newMockUserRepository()
	audits := &mockAuditRepository{}
	return NewUserService(userRepo, NewAuditService(audits, nil), nil), userRepo, audits
}

func TestUserService_CreateUser_Success(t *testing.T) {
	service, _, audits := createTestUserService()

	req := &domain.CreateUserRequest{
		Username: "cashier01",
		Email:    "Cashier01@Shop.test",
		Password: "password123",
	}

	user, err := service.CreateUser(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if user.Username != req.Username {
		t.Errorf("Expected username %s, got %s", req.Username, user.Username)
	}
	if user.Email != "cashier01@shop.test" {
		t.Errorf("Expected normalized email, got %s", user.Email)
	}
	if user.Role != domain.UserRoleStaff {
		t.Errorf("Expected role %s, got %s", domain.UserRoleStaff, user.Role)
	}
	if !user.IsActive {
		t.Error("Expected user to be active")
	}

	// 验证密码已哈希
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		t.Errorf("Password hash verification failed: %v", err)
	}
	if len(audits.entries) != 1 {
		t.Errorf("Expected 1 audit entry, got %d", len(audits.entries))
	}
}

func TestUserService_CreateUser_Duplicate(t *testing.T) {
	service, _, _ := createTestUserService()
	ctx := context.Background()

	req := &domain.CreateUserRequest{Username: "cashier01", Email: "a@shop.test", Password: "password123"}
	if _, err := service.CreateUser(ctx, req); err != nil {
		t.Fatalf("First CreateUser failed: %v", err)
	}

	tests := []struct {
		name string
		req  *domain.CreateUserRequest
	}{
		{"duplicate username", &domain.CreateUserRequest{Username: "cashier01", Email: "b@shop.test", Password: "password123"}},
		{"duplicate email", &domain.CreateUserRequest{Username: "cashier02", Email: "a@shop.test", Password: "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateUser(ctx, tt.req)
			if !errors.Is(err, ErrUserExists) {
				t.Errorf("Expected ErrUserExists, got %v", err)
			}
		})
	}
}

func TestUserService_CreateUser_InvalidRole(t *testing.T) {
	service, _, _ := createTestUserService()

	_, err := service.CreateUser(context.Background(), &domain.CreateUserRequest{
		Username: "cashier01", Email: "a@shop.test", Password: "password123", Role: "owner",
	})
	if _, ok := domain.AsValidation(err); !ok {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestUserService_Login(t *testing.T) {
	service, userRepo, audits := createTestUserService()
	ctx := context.Background()

	created, err := service.CreateUser(ctx, &domain.CreateUserRequest{
		Username: "cashier01", Email: "cashier01@shop.test", Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"by username", "cashier01", "password123", nil},
		{"by email", "cashier01@shop.test", "password123", nil},
		{"wrong password", "cashier01", "wrong", ErrInvalidCredentials},
		{"unknown user", "nobody", "password123", ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := service.Login(ctx, &domain.LoginRequest{Username: tt.username, Password: tt.password})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if user.ID != created.ID {
				t.Errorf("Expected user ID %d, got %d", created.ID, user.ID)
			}
		})
	}

	last := audits.entries[len(audits.entries)-1]
	if last.Action != domain.AuditLogin || last.UserID != created.ID {
		t.Errorf("Expected login audit by user %d, got %+v", created.ID, last)
	}

	if err := userRepo.UpdateStatus(ctx, created.ID, false); err != nil {
		t.Fatal(err)
	}
	_, err = service.Login(ctx, &domain.LoginRequest{Username: "cashier01", Password: "password123"})
	if !errors.Is(err, ErrUserInactive) {
		t.Errorf("Expected ErrUserInactive, got %v", err)
	}
}

func TestUserService_GetUserByID(t *testing.T) {
	service, _, _ := createTestUserService()
	ctx := context.Background()

	created, err := service.CreateUser(ctx, &domain.CreateUserRequest{
		Username: "cashier01", Email: "cashier01@shop.test", Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := service.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.Username != "cashier01" {
		t.Errorf("Expected cashier01, got %s", user.Username)
	}

	if _, err := service.GetUserByID(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	service, userRepo, _ := createTestUserService()
	ctx := context.Background()

	if err := service.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatalf("EnsureAdmin with empty username should be a no-op: %v", err)
	}
	if len(userRepo.users) != 0 {
		t.Fatal("no user should be created")
	}

	for i := 0; i < 2; i++ {
		if err := service.EnsureAdmin(ctx, "owner", "owner@shop.test", "supersecret"); err != nil {
			t.Fatalf("EnsureAdmin failed: %v", err)
		}
	}
	if len(userRepo.users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(userRepo.users))
	}
	if !userRepo.users["owner"].IsAdmin() {
		t.Error("Expected admin role")
	}
}
