package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// 定义业务错误
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)

// UserService 定义后台账号服务接口
type UserService interface {
	CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	// EnsureAdmin 在账号不存在时创建管理员，用于首次部署
	EnsureAdmin(ctx context.Context, username, email, password string) error
}

// userService 是 UserService 接口的实现
type userService struct {
	userRepo repo.UserRepository
	audit    AuditService
	logger   *zap.Logger
}

// NewUserService 创建用户服务实例
func NewUserService(userRepo repo.UserRepository, audit AuditService, logger *zap.Logger) UserService {
	if audit == nil {
		audit = nopAudit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{
		userRepo: userRepo,
		audit:    audit,
		logger:   logger,
	}
}

// CreateUser 创建后台账号
// 业务规则：
// 1. 用户名和邮箱不能重复
// 2. 密码需要进行bcrypt哈希
// 3. 未指定角色时为店员
func (s *userService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	role := req.Role
	if role == "" {
		role = domain.UserRoleStaff
	}
	if !role.Valid() {
		return nil, domain.NewValidationError("invalid role %q", req.Role)
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Error("failed to check username", zap.Error(err))
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}
	existing, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email", zap.Error(err))
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)
	s.audit.Record(ctx, domain.AuditCreate, "user", fmt.Sprint(user.ID), "created user "+user.Username)
	return user, nil
}

// Login 用户登录
// 业务规则：
// 1. 支持用户名或邮箱登录
// 2. 验证密码正确性
// 3. 检查用户是否处于活跃状态
func (s *userService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		s.logger.Error("failed to get user by username", zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}

	// 如果用户名找不到，尝试用邮箱查找
	if user == nil {
		user, err = s.userRepo.GetByEmail(ctx, strings.ToLower(req.Username))
		if err != nil {
			s.logger.Error("failed to get user by email", zap.Error(err))
			return nil, fmt.Errorf("get user: %w", err)
		}
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to compare password", zap.Error(err))
		return nil, fmt.Errorf("compare password: %w", err)
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	actx := domain.ContextWithActor(ctx, domain.Actor{UserID: user.ID, Username: user.Username})
	s.audit.Record(actx, domain.AuditLogin, "user", fmt.Sprint(user.ID), "logged in")
	return user, nil
}

// GetUserByID 根据ID获取用户
func (s *userService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get user by id", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if username == "" {
		return nil
	}
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	if email == "" {
		email = username + "@localhost"
	}

	_, err = s.CreateUser(ctx, &domain.CreateUserRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     domain.UserRoleAdmin,
	})
	if err != nil && !errors.Is(err, ErrUserExists) {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
