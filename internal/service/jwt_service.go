package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/config"
	"github.com/MorseWayne/retail_admin/internal/domain"
)

// 令牌校验错误，中间件与处理器据此返回 401
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenNotReady = errors.New("token used before valid")
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims 后台账号令牌载荷，携带写审计日志所需的操作人信息
type Claims struct {
	UserID   int64           `json:"user_id"`
	Username string          `json:"username"`
	Role     domain.UserRole `json:"role"`
	Type     string          `json:"type"`
	jwt.RegisteredClaims
}

// Actor 返回令牌对应的操作人
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{UserID: c.UserID, Username: c.Username}
}

// TokenPair 访问令牌与刷新令牌
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// JWTService 签发并校验后台账号令牌
type JWTService interface {
	GenerateTokenPair(user *domain.User) (*TokenPair, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

type jwtService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewJWTService 创建令牌服务，签发者取应用名
func NewJWTService(cfg *config.Config, logger *zap.Logger) JWTService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &jwtService{
		secret:     []byte(cfg.JWT.Secret),
		issuer:     cfg.App.Name,
		accessTTL:  cfg.JWT.AccessTokenTTL,
		refreshTTL: cfg.JWT.RefreshTokenTTL,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *jwtService) GenerateTokenPair(user *domain.User) (*TokenPair, error) {
	now := s.now()
	access, err := s.sign(user, tokenAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, tokenRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("token pair issued",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// sign 按类型签发单个令牌
func (s *jwtService) sign(user *domain.User, kind string, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Type:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.logger.Error("failed to sign token", zap.String("type", kind), zap.Error(err))
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *jwtService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, tokenAccess)
}

func (s *jwtService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, tokenRefresh)
}

// parse 校验签名、签发者、有效期与令牌类型
func (s *jwtService) parse(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotReady
	case err != nil:
		s.logger.Warn("token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}

	if claims.Type != kind {
		s.logger.Warn("token type mismatch", zap.String("expected", kind), zap.String("actual", claims.Type))
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserLookup 按 ID 读取后台账号
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// RefreshSession 用刷新令牌换取新令牌对。账号按当前状态重新读取：
// 已删除的账号视为令牌无效，停用账号返回 ErrUserInactive，角色变更在新令牌中生效。
func RefreshSession(ctx context.Context, tokens JWTService, users UserLookup, refreshToken string) (*domain.User, *TokenPair, error) {
	claims, err := tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	pair, err := tokens.GenerateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}
