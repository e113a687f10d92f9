// Package limiter 提供基于 Redis 的固定窗口限流
package limiter

import (
	"context"
	"time"
)

// LimitResult 限流结果
type LimitResult struct {
	Allowed       bool          `json:"allowed"`        // 是否允许通过
	Limit         int64         `json:"limit"`          // 窗口内阈值
	Remaining     int64         `json:"remaining"`      // 剩余配额
	RetryAfter    time.Duration `json:"retry_after"`    // 建议重试时间
	TotalRequests int64         `json:"total_requests"` // 当前窗口请求数
}

// LimitInfo 限流信息
type LimitInfo struct {
	Limit     int64         `json:"limit"`
	Remaining int64         `json:"remaining"`
	Window    time.Duration `json:"window"`
	ResetTime time.Time     `json:"reset_time"`
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查是否允许请求通过
	Allow(ctx context.Context, key string) (*LimitResult, error)

	// AllowN 检查是否允许N个请求通过
	AllowN(ctx context.Context, key string, n int64) (*LimitResult, error)

	// Reset 重置当前窗口
	Reset(ctx context.Context, key string) error

	// GetInfo 获取限流信息
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)
}

// Config 限流配置
type Config struct {
	Rate      int64         `json:"rate"`       // 窗口内允许的请求数
	Window    time.Duration `json:"window"`     // 时间窗口，按秒取整
	KeyPrefix string        `json:"key_prefix"` // Key前缀
}

// windowSeconds 返回窗口秒数，至少为 1
func (c *Config) windowSeconds() int64 {
	s := int64(c.Window / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
