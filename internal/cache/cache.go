// Package cache 提供缓存抽象及 Redis、内存两种实现
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss 表示键不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

// Cache 定义缓存操作接口，值以 JSON 编码存储
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// 缓存键
func ProductKey(id string) string { return "product:id:" + id }
func ProductSKUKey(sku string) string { return "product:sku:" + sku }
func PathaoTokenKey(brand string) string { return "pathao:token:" + brand }
func IdempotencyKey(scope, k string) string { return "idempotency:" + scope + ":" + k }

// MemoryCache 进程内缓存，用于开发、测试及 Redis 不可用时的降级
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]*memoryCacheItem
	now  func() time.Time
}

type memoryCacheItem struct {
	value      []byte
	expiration time.Time // 零值表示不过期
}

// NewMemoryCache 创建内存缓存实例
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]*memoryCacheItem),
		now:  time.Now,
	}
}

// lookup 返回未过期的条目，调用方需持有锁
func (m *MemoryCache) lookup(key string) (*memoryCacheItem, bool) {
	item, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !item.expiration.IsZero() && !m.now().Before(item.expiration) {
		delete(m.data, key)
		return nil, false
	}
	return item, true
}

func (m *MemoryCache) put(key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item := &memoryCacheItem{value: data}
	if expiration > 0 {
		item.expiration = m.now().Add(expiration)
	}
	m.data[key] = item
	return nil
}

// Get 获取缓存值
func (m *MemoryCache) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	item, ok := m.lookup(key)
	m.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.value, dest)
}

// Set 设置缓存值
func (m *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(key, value, expiration)
}

// Del 删除缓存值
func (m *MemoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Exists 检查键是否存在
func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok, nil
}

// SetNX 仅当键不存在时设置，检查与写入在同一把锁内完成
func (m *MemoryCache) SetNX(_ context.Context, key string, value any, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	if err := m.put(key, value, expiration); err != nil {
		return false, err
	}
	return true, nil
}

// Ping 检查连接
func (m *MemoryCache) Ping(context.Context) error {
	return nil
}

// Close 清空缓存
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.data = make(map[string]*memoryCacheItem)
	m.mu.Unlock()
	return nil
}

// NullCache 空缓存实现（禁用缓存时使用）
type NullCache struct{}

// NewNullCache 创建空缓存实例
func NewNullCache() *NullCache {
	return &NullCache{}
}

func (NullCache) Get(context.Context, string, any) error { return ErrCacheMiss }
func (NullCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (NullCache) Del(context.Context, ...string) error { return nil }
func (NullCache) Exists(context.Context, string) (bool, error) { return false, nil }
func (NullCache) Ping(context.Context) error { return nil }
func (NullCache) Close() error { return nil }

// SetNX 总是成功，禁用缓存时幂等检查不生效
func (NullCache) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}
