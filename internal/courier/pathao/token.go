package pathao

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MorseWayne/retail_admin/internal/cache"
)

// Token 为缓存的访问令牌，ExpiresAt 已扣除安全余量
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid 判断令牌在 now 时刻是否可用
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// TokenStore 按品牌保存令牌，多实例部署时应使用共享存储
type TokenStore interface {
	Load(ctx context.Context, brand string) (Token, bool, error)
	Save(ctx context.Context, brand string, token Token) error
	Clear(ctx context.Context, brand string) error
}

// CacheTokenStore 基于 cache.Cache 的令牌存储，键的过期时间与令牌一致
type CacheTokenStore struct {
	cache cache.Cache
	now   func() time.Time
}

// NewCacheTokenStore 创建令牌存储
func NewCacheTokenStore(c cache.Cache) *CacheTokenStore {
	return &CacheTokenStore{cache: c, now: time.Now}
}

func (s *CacheTokenStore) Load(ctx context.Context, brand string) (Token, bool, error) {
	var t Token
	err := s.cache.Get(ctx, cache.PathaoTokenKey(brand), &t)
	if errors.Is(err, cache.ErrCacheMiss) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}
	return t, true, nil
}

func (s *CacheTokenStore) Save(ctx context.Context, brand string, t Token) error {
	ttl := t.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, cache.PathaoTokenKey(brand), t, ttl)
}

func (s *CacheTokenStore) Clear(ctx context.Context, brand string) error {
	return s.cache.Del(ctx, cache.PathaoTokenKey(brand))
}

// memoryTokenStore 未注入存储时使用
type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]Token
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: make(map[string]Token)}
}

func (s *memoryTokenStore) Load(_ context.Context, brand string) (Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[brand]
	return t, ok, nil
}

func (s *memoryTokenStore) Save(_ context.Context, brand string, t Token) error {
	s.mu.Lock()
	s.tokens[brand] = t
	s.mu.Unlock()
	return nil
}

func (s *memoryTokenStore) Clear(_ context.Context, brand string) error {
	s.mu.Lock()
	delete(s.tokens, brand)
	s.mu.Unlock()
	return nil
}
