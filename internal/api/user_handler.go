package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// UserHandler 登录与后台账号接口
type UserHandler struct {
	userService service.UserService
	jwtService  service.JWTService
	logger      *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userService service.UserService, jwtService service.JWTService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// Login 处理用户登录请求
// POST /api/v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	user, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err, "login")
		return
	}

	h.issueTokens(c, user)
}

// RefreshToken 刷新令牌对，停用的账号不再发放令牌
// POST /api/v1/auth/refresh
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req domain.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}

	user, pair, err := service.RefreshSession(c.Request.Context(), h.jwtService, h.userService, req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, err, "refresh token")
		return
	}
	h.writeTokens(c, user, pair)
}

// CreateUser 管理员创建后台账号
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err, "create user")
		return
	}
	resp.Created(c.Writer, user, middleware.GetRequestID(c), "")
}

// GetProfile 获取当前用户信息
// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.GetInt64(middleware.KeyUserID))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "user not found", middleware.GetRequestID(c), "")
			return
		}
		writeError(c, h.logger, err, "get profile")
		return
	}
	resp.OK(c.Writer, user, middleware.GetRequestID(c), "")
}

func (h *UserHandler) issueTokens(c *gin.Context, user *domain.User) {
	pair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		writeError(c, h.logger, err, "generate tokens")
		return
	}
	h.writeTokens(c, user, pair)
}

func (h *UserHandler) writeTokens(c *gin.Context, user *domain.User, pair *service.TokenPair) {
	resp.OK(c.Writer, &domain.LoginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, middleware.GetRequestID(c), "")
}
