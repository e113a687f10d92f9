package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/config"
	"github.com/MorseWayne/retail_admin/internal/service"
)

func TestPathaoCredentials(t *testing.T) {
	creds := pathaoCredentials(config.PathaoConfig{
		BaseURL: "https://courier.test",
		Timeout: 10 * time.Second,
		GoBaby: config.PathaoCredentials{
			ClientID: "gb-id", ClientSecret: "gb-secret", Username: "gb@shop.test", Password: "pw", StoreID: 11,
		},
	})

	require.Len(t, creds, 2)
	assert.Equal(t, config.BrandDCCBazar, creds[0].Brand)
	assert.Empty(t, creds[0].ClientID)

	gb := creds[1]
	assert.Equal(t, config.BrandGoBaby, gb.Brand)
	assert.Equal(t, "https://courier.test", gb.BaseURL)
	assert.Equal(t, "gb-id", gb.ClientID)
	assert.Equal(t, int64(11), gb.StoreID)
}

func TestInitCache(t *testing.T) {
	lg := zap.NewNop()

	tests := []struct {
		name string
		cfg  config.CacheConfig
		want any
	}{
		{"disabled", config.CacheConfig{Enabled: false}, &cache.NullCache{}},
		{"memory", config.CacheConfig{Enabled: true, Type: "memory"}, &cache.MemoryCache{}},
		{"redis unavailable falls back", config.CacheConfig{Enabled: true, Type: "redis"}, &cache.MemoryCache{}},
		{"unknown type", config.CacheConfig{Enabled: true, Type: "disk"}, &cache.MemoryCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := initCache(&config.Config{Cache: tt.cfg}, nil, lg)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestInitLimiters_DisabledWithoutRedis(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{Enabled: true, LoginRate: 5, APIRate: 100}}

	login, api := initLimiters(cfg, nil, zap.NewNop())
	assert.Nil(t, login)
	assert.Nil(t, api)

	cfg.RateLimit.Enabled = false
	login, api = initLimiters(cfg, nil, zap.NewNop())
	assert.Nil(t, login)
	assert.Nil(t, api)
}

func TestInitEvents_Disabled(t *testing.T) {
	events, conn := initEvents(&config.Config{}, zap.NewNop())
	assert.IsType(t, service.NopOrderEvents{}, events)
	assert.Nil(t, conn)
}
