// Package pathao 封装 Pathao 快递接口：令牌缓存、下单与查询运单状态。
// 所有请求失败即返回，不做重试。
package pathao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	issueTokenPath  = "/aladdin/api/v1/issue-token"
	createOrderPath = "/aladdin/api/v1/orders"
	orderInfoPath   = "/aladdin/api/v1/orders/%s/info"

	// 令牌提前 5 分钟视为过期
	tokenSafetyMargin = 300 * time.Second

	// 响应体最多读取 1MB
	maxBodyBytes = 1 << 20
)

// Credentials 单个品牌的接入凭据
type Credentials struct {
	Brand        string
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	StoreID      int64
}

// Client 为单个品牌的 Pathao 客户端
type Client struct {
	creds  Credentials
	http   *http.Client
	tokens TokenStore
	logger *zap.Logger
	now    func() time.Time

	// authMu 保证同一时刻只有一次换取令牌
	authMu sync.Mutex
}

// Option 客户端可选配置
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTokenStore 注入令牌存储
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithLogger 注入日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient 创建客户端
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:  creds,
		http:   &http.Client{Timeout: 30 * time.Second},
		tokens: newMemoryTokenStore(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.creds.BaseURL = strings.TrimRight(c.creds.BaseURL, "/")
	return c
}

// Brand 返回客户端所属品牌
func (c *Client) Brand() string {
	return c.creds.Brand
}

type issueTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	GrantType    string `json:"grant_type"`
}

type issueTokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AccessToken 返回可用令牌，缓存失效时使用密码模式重新换取
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	tok, ok, err := c.tokens.Load(ctx, c.creds.Brand)
	if err != nil {
		c.logger.Warn("load pathao token failed", zap.String("brand", c.creds.Brand), zap.Error(err))
	}
	if ok && tok.Valid(c.now()) {
		return tok.AccessToken, nil
	}

	tok, err = c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	if err := c.tokens.Save(ctx, c.creds.Brand, tok); err != nil {
		c.logger.Warn("save pathao token failed", zap.String("brand", c.creds.Brand), zap.Error(err))
	}
	return tok.AccessToken, nil
}

func (c *Client) authenticate(ctx context.Context) (Token, error) {
	payload, err := json.Marshal(issueTokenRequest{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		Username:     c.creds.Username,
		Password:     c.creds.Password,
		GrantType:    "password",
	})
	if err != nil {
		return Token{}, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.BaseURL+issueTokenPath, bytes.NewReader(payload))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.send(req)
	if err != nil {
		return Token{}, err
	}
	if status < 200 || status > 299 {
		return Token{}, &AuthenticationError{Status: status, Body: string(body)}
	}

	var resp issueTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		return Token{}, &AuthenticationError{Status: status, Body: string(body)}
	}

	issued := c.now()
	c.logger.Info("pathao token issued", zap.String("brand", c.creds.Brand), zap.Int64("expires_in", resp.ExpiresIn))
	return Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   issued.Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSafetyMargin),
	}, nil
}

// send 执行请求并读取响应体
func (c *Client) send(req *http.Request) (int, []byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("pathao %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read pathao response: %w", err)
	}
	return res.StatusCode, body, nil
}

// do 发送带令牌的请求，非 2xx 返回 UpstreamError，out 非空时解析响应
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal pathao request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.creds.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build pathao request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	status, body, err := c.send(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		if status == http.StatusUnauthorized {
			// 令牌被上游吊销，下次调用重新换取
			_ = c.tokens.Clear(ctx, c.creds.Brand)
		}
		return &UpstreamError{Method: method, Path: path, Status: status, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode pathao response: %w", err)
	}
	return nil
}
