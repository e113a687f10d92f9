package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter 固定窗口限流器，计数保存在 Redis 中并随窗口过期
type FixedWindowLimiter struct {
	client redis.Cmdable
	config Config
	now    func() time.Time
}

// NewFixedWindowLimiter 创建固定窗口限流器
func NewFixedWindowLimiter(client redis.Cmdable, config Config) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", config.Rate)
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "limiter:fw"
	}
	return &FixedWindowLimiter{client: client, config: config, now: time.Now}, nil
}

// KEYS[1]: 当前窗口计数 key
// ARGV[1]: 阈值  ARGV[2]: 窗口秒数  ARGV[3]: 请求数量  ARGV[4]: 距窗口结束秒数
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local requests = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local current = tonumber(redis.call('GET', key) or 0)
if current + requests > limit then
    return {0, limit - current, ttl, current}
end

local count = redis.call('INCRBY', key, requests)
if count == requests then
    redis.call('EXPIRE', key, window)
end
return {1, limit - count, 0, count}
`)

// windowKey 返回当前窗口的 key 及窗口起点
func (fw *FixedWindowLimiter) windowKey(key string) (string, int64) {
	window := fw.config.windowSeconds()
	start := fw.now().Unix() / window * window
	return fmt.Sprintf("%s:%s:%d", fw.config.KeyPrefix, key, start), start
}

// Allow 检查是否允许请求通过
func (fw *FixedWindowLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return fw.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (fw *FixedWindowLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	window := fw.config.windowSeconds()
	redisKey, start := fw.windowKey(key)
	ttl := start + window - fw.now().Unix()

	val, err := fixedWindowScript.Run(ctx, fw.client, []string{redisKey},
		fw.config.Rate, window, n, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to execute fixed window script: %w", err)
	}

	result, err := parseScriptResult(val)
	if err != nil {
		return nil, err
	}
	result.Limit = fw.config.Rate
	return result, nil
}

// parseScriptResult 解析脚本返回的 {allowed, remaining, retry_after, count}
func parseScriptResult(val any) (*LimitResult, error) {
	values, ok := val.([]any)
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result: %v", val)
	}
	nums := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element %d: %T", i, v)
		}
		nums[i] = n
	}
	remaining := nums[1]
	if remaining < 0 {
		remaining = 0
	}
	return &LimitResult{
		Allowed:       nums[0] == 1,
		Remaining:     remaining,
		RetryAfter:    time.Duration(nums[2]) * time.Second,
		TotalRequests: nums[3],
	}, nil
}

// Reset 删除当前窗口计数
func (fw *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	redisKey, _ := fw.windowKey(key)
	if err := fw.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to reset limiter key: %w", err)
	}
	return nil
}

// GetInfo 获取当前窗口的计数信息
func (fw *FixedWindowLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	redisKey, start := fw.windowKey(key)

	current, err := fw.client.Get(ctx, redisKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read limiter key: %w", err)
	}

	remaining := fw.config.Rate - current
	if remaining < 0 {
		remaining = 0
	}
	return &LimitInfo{
		Limit:     fw.config.Rate,
		Remaining: remaining,
		Window:    fw.config.Window,
		ResetTime: time.Unix(start+fw.config.windowSeconds(), 0),
	}, nil
}
