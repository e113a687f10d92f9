// Package config 负责加载与校验应用配置。
// 配置来源优先级：环境变量 > .env 文件 > 代码内默认值。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 为应用的完整配置
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Migrations  MigrationsConfig  `mapstructure:"migrations"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	CORS        CORSConfig        `mapstructure:"cors"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Admin       AdminConfig       `mapstructure:"admin"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	MQ          MQConfig          `mapstructure:"mq"`
	Order       OrderConfig       `mapstructure:"order"`
	Pathao      PathaoConfig      `mapstructure:"pathao"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Env             string        `mapstructure:"env"`
	Name            string        `mapstructure:"name"`
	Version         string        `mapstructure:"version"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json 或 console
}

// DatabaseConfig MySQL 连接配置
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// MigrationsConfig 数据库迁移配置
type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr 返回 host:port 形式的地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Type    string        `mapstructure:"type"` // redis 或 memory
	TTL     time.Duration `mapstructure:"ttl"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// JWTConfig 令牌配置
type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// AdminConfig 启动时确保存在的管理员账号，用户名为空时跳过
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// RateLimitConfig 限流配置，计数存放在 Redis 中
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	LoginRate   int64         `mapstructure:"login_rate"`
	LoginWindow time.Duration `mapstructure:"login_window"`
	APIRate     int64         `mapstructure:"api_rate"`
	APIWindow   time.Duration `mapstructure:"api_window"`
}

// IdempotencyConfig 幂等键配置
type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MQConfig 订单事件消息队列配置
type MQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
}

// OrderConfig 订单相关开关
type OrderConfig struct {
	// AtomicStock 打开后扣减库存使用条件更新，并在失败时回补已扣减的行。
	// 默认关闭，保持逐行读改写的行为。
	AtomicStock bool `mapstructure:"atomic_stock"`
}

// PathaoCredentials 单个品牌的 Pathao 凭据
type PathaoCredentials struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	StoreID      int64  `mapstructure:"store_id"`
}

// PathaoConfig 快递接入配置，每个品牌一组凭据
type PathaoConfig struct {
	BaseURL  string            `mapstructure:"base_url"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	GoBaby   PathaoCredentials `mapstructure:"gobaby"`
	DCCBazar PathaoCredentials `mapstructure:"dccbazar"`
}

// 品牌名称
const (
	BrandGoBaby   = "Go Baby"
	BrandDCCBazar = "DCC Bazar"
)

// Brands 返回品牌名到凭据的映射
func (p PathaoConfig) Brands() map[string]PathaoCredentials {
	return map[string]PathaoCredentials{
		BrandGoBaby:   p.GoBaby,
		BrandDCCBazar: p.DCCBazar,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.name", "retail-admin")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.request_timeout", "15s")
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "retail_admin")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("migrations.dir", "migrations")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", "redis")
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID", "X-Idempotency-Key"})

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.login_rate", 10)
	v.SetDefault("ratelimit.login_window", "1m")
	v.SetDefault("ratelimit.api_rate", 300)
	v.SetDefault("ratelimit.api_window", "1m")

	v.SetDefault("idempotency.ttl", "10m")

	v.SetDefault("mq.enabled", false)
	v.SetDefault("mq.host", "127.0.0.1")
	v.SetDefault("mq.port", 5672)
	v.SetDefault("mq.username", "guest")
	v.SetDefault("mq.password", "guest")
	v.SetDefault("mq.vhost", "/")

	v.SetDefault("order.atomic_stock", false)

	v.SetDefault("pathao.base_url", "https://api-hermes.pathao.com")
	v.SetDefault("pathao.timeout", "30s")
	for _, brand := range []string{"gobaby", "dccbazar"} {
		v.SetDefault("pathao."+brand+".client_id", "")
		v.SetDefault("pathao."+brand+".client_secret", "")
		v.SetDefault("pathao."+brand+".username", "")
		v.SetDefault("pathao."+brand+".password", "")
		v.SetDefault("pathao."+brand+".store_id", 0)
	}
}

// Load 读取 .env（若存在）与环境变量并返回校验后的配置。
// 环境变量名为键名大写并以下划线连接，例如 database.host -> DATABASE_HOST。
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	var errs []error

	switch c.App.Env {
	case "dev", "test", "prod":
	default:
		errs = append(errs, fmt.Errorf("app.env must be one of dev|test|prod, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port out of range: %d", c.App.Port))
	}
	if c.App.RequestTimeout <= 0 {
		errs = append(errs, errors.New("app.request_timeout must be positive"))
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding))
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		errs = append(errs, errors.New("database.host and database.dbname are required"))
	}
	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "redis", "memory":
		default:
			errs = append(errs, fmt.Errorf("cache.type must be redis or memory, got %q", c.Cache.Type))
		}
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt token ttl must be positive"))
	}
	if c.Admin.Username != "" && len(c.Admin.Password) < 8 {
		errs = append(errs, errors.New("admin.password must be at least 8 characters"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.LoginRate <= 0 || c.RateLimit.LoginWindow < time.Second) {
		errs = append(errs, errors.New("ratelimit.login_rate must be positive and login_window at least 1s"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.APIRate <= 0 || c.RateLimit.APIWindow < time.Second) {
		errs = append(errs, errors.New("ratelimit.api_rate must be positive and api_window at least 1s"))
	}
	if c.Pathao.BaseURL == "" {
		errs = append(errs, errors.New("pathao.base_url is required"))
	}

	return errors.Join(errs...)
}
