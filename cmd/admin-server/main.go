package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/api"
	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/config"
	"github.com/MorseWayne/retail_admin/internal/courier/pathao"
	"github.com/MorseWayne/retail_admin/internal/database"
	"github.com/MorseWayne/retail_admin/internal/limiter"
	"github.com/MorseWayne/retail_admin/internal/logger"
	"github.com/MorseWayne/retail_admin/internal/mq"
	"github.com/MorseWayne/retail_admin/internal/repo"
	"github.com/MorseWayne/retail_admin/internal/router"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// app 持有需要在退出时释放的资源
type app struct {
	db      *database.DB
	redis   *redis.Client
	cache   cache.Cache
	mqConn  *mq.ConnectionManager
	handler http.Handler
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 迁移在 HTTP 服务启动前完成
	lg.Sugar().Infow("using migrations directory", "path", cfg.Migrations.Dir)
	if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

// initRedis 连接 Redis，失败时返回 nil，由调用方降级
func initRedis(cfg *config.Config, lg *zap.Logger) *redis.Client {
	needed := (cfg.Cache.Enabled && cfg.Cache.Type == "redis") || cfg.RateLimit.Enabled
	if !needed {
		return nil
	}
	client, err := cache.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		lg.Sugar().Warnw("redis unavailable", "addr", cfg.Redis.Addr(), "error", err)
		return nil
	}
	lg.Sugar().Infow("redis connected", "addr", cfg.Redis.Addr())
	return client
}

// initCache 初始化缓存实例，Redis 不可用时回退到内存缓存
func initCache(cfg *config.Config, client *redis.Client, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}
	switch cfg.Cache.Type {
	case "redis":
		if client != nil {
			lg.Sugar().Infow("cache enabled", "type", "redis", "ttl", cfg.Cache.TTL)
			return cache.NewRedisCache(client)
		}
		lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
	case "memory":
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
	default:
		lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
	}
	return cache.NewMemoryCache()
}

// initLimiters 创建登录与接口限流器，未启用或 Redis 不可用时返回 nil
func initLimiters(cfg *config.Config, client *redis.Client, lg *zap.Logger) (login, apiLimiter limiter.Limiter) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	if client == nil {
		lg.Sugar().Warnw("rate limiting disabled: redis unavailable")
		return nil, nil
	}

	var err error
	login, err = limiter.NewFixedWindowLimiter(client, limiter.Config{
		Rate:      cfg.RateLimit.LoginRate,
		Window:    cfg.RateLimit.LoginWindow,
		KeyPrefix: "limiter:login",
	})
	if err != nil {
		lg.Sugar().Warnw("login limiter disabled", "error", err)
		login = nil
	}
	apiLimiter, err = limiter.NewFixedWindowLimiter(client, limiter.Config{
		Rate:      cfg.RateLimit.APIRate,
		Window:    cfg.RateLimit.APIWindow,
		KeyPrefix: "limiter:api",
	})
	if err != nil {
		lg.Sugar().Warnw("api limiter disabled", "error", err)
		apiLimiter = nil
	}
	return login, apiLimiter
}

// initEvents 连接 RabbitMQ 并返回订单事件发布器，未启用或连接失败时丢弃事件
func initEvents(cfg *config.Config, lg *zap.Logger) (service.OrderEvents, *mq.ConnectionManager) {
	if !cfg.MQ.Enabled {
		return service.NopOrderEvents{}, nil
	}

	mqCfg := mq.DefaultConfig()
	mqCfg.Host = cfg.MQ.Host
	mqCfg.Port = cfg.MQ.Port
	mqCfg.Username = cfg.MQ.Username
	mqCfg.Password = cfg.MQ.Password
	if cfg.MQ.VHost != "" {
		mqCfg.VHost = cfg.MQ.VHost
	}
	if err := mqCfg.Validate(); err != nil {
		lg.Sugar().Warnw("order events disabled: invalid mq config", "error", err)
		return service.NopOrderEvents{}, nil
	}

	cm := mq.NewConnectionManager(mqCfg, lg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cm.Connect(ctx); err != nil {
		lg.Sugar().Warnw("order events disabled: rabbitmq unavailable", "error", err)
		return service.NopOrderEvents{}, nil
	}

	producer := mq.NewProducer(cm, mqCfg, lg)
	if err := producer.DeclareExchange(mqCfg.Exchange); err != nil {
		lg.Sugar().Warnw("order events disabled: declare exchange failed", "error", err)
		_ = cm.Close()
		return service.NopOrderEvents{}, nil
	}
	// 重连后交换机可能已丢失
	cm.OnReconnected(func() {
		if err := producer.DeclareExchange(mqCfg.Exchange); err != nil {
			lg.Sugar().Errorw("redeclare exchange failed", "exchange", mqCfg.Exchange, "error", err)
		}
	})

	lg.Sugar().Infow("order events enabled", "exchange", mqCfg.Exchange)
	return mq.NewOrderEventPublisher(producer, mqCfg.Exchange, lg), cm
}

// pathaoCredentials 把配置中的品牌凭据转换为客户端凭据，按品牌名排序
func pathaoCredentials(cfg config.PathaoConfig) []pathao.Credentials {
	brands := cfg.Brands()
	names := make([]string, 0, len(brands))
	for name := range brands {
		names = append(names, name)
	}
	sort.Strings(names)

	creds := make([]pathao.Credentials, 0, len(names))
	for _, name := range names {
		c := brands[name]
		creds = append(creds, pathao.Credentials{
			Brand:        name,
			BaseURL:      cfg.BaseURL,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Username:     c.Username,
			Password:     c.Password,
			StoreID:      c.StoreID,
		})
	}
	return creds
}

// initDependencies 初始化依赖注入链：仓储 -> 服务 -> API处理器
func initDependencies(cfg *config.Config, db *database.DB, c cache.Cache, events service.OrderEvents, lg *zap.Logger) *router.Dependencies {
	auditService := service.NewAuditService(repo.NewAuditRepository(db.DB), lg)

	userService := service.NewUserService(repo.NewUserRepository(db.DB), auditService, lg)
	jwtService := service.NewJWTService(cfg, lg)

	var productRepo repo.ProductRepository = repo.NewProductRepository(db.DB)
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(productRepo, c, cfg.Cache.TTL, lg)
	}
	customerRepo := repo.NewCustomerRepository(db.DB)
	orderRepo := repo.NewOrderRepository(db.DB)

	productService := service.NewProductService(productRepo, auditService, lg)
	importService := service.NewImportService(productRepo, auditService, lg)
	customerService := service.NewCustomerService(customerRepo, lg)
	orderService := service.NewOrderService(orderRepo, productRepo, customerRepo, service.OrderServiceOptions{
		AtomicStock: cfg.Order.AtomicStock,
		Audit:       auditService,
		Events:      events,
		Logger:      lg,
	})

	registry := pathao.NewRegistry(pathaoCredentials(cfg.Pathao),
		pathao.WithHTTPClient(&http.Client{Timeout: cfg.Pathao.Timeout}),
		pathao.WithTokenStore(pathao.NewCacheTokenStore(c)),
		pathao.WithLogger(lg),
	)
	lg.Sugar().Infow("pathao brands configured", "brands", registry.Brands())
	courierService := service.NewCourierService(orderRepo, productRepo, customerRepo, registry, auditService, events, lg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := userService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		lg.Sugar().Errorw("failed to ensure admin account", "username", cfg.Admin.Username, "error", err)
	}

	return &router.Dependencies{
		UserHandler:     api.NewUserHandler(userService, jwtService, lg),
		OrderHandler:    api.NewOrderHandler(orderService, lg),
		ProductHandler:  api.NewProductHandler(productService, importService, lg),
		CustomerHandler: api.NewCustomerHandler(customerService, lg),
		PathaoHandler:   api.NewPathaoHandler(courierService, lg),
		AuditHandler:    api.NewAuditHandler(auditService, lg),
		JWTService:      jwtService,
		Cache:           c,
		Health: map[string]router.HealthFunc{
			"database": db.PingContext,
			"cache":    c.Ping,
		},
	}
}

// setup 按顺序初始化所有组件
func setup(cfg *config.Config, lg *zap.Logger) (*app, error) {
	db, err := initDatabase(cfg, lg)
	if err != nil {
		return nil, err
	}

	a := &app{db: db}
	a.redis = initRedis(cfg, lg)
	a.cache = initCache(cfg, a.redis, lg)

	var events service.OrderEvents
	events, a.mqConn = initEvents(cfg, lg)

	deps := initDependencies(cfg, db, a.cache, events, lg)
	deps.LoginLimiter, deps.APILimiter = initLimiters(cfg, a.redis, lg)

	a.handler = router.New().Setup(cfg, deps, lg)
	return a, nil
}

// close 逆序释放资源
func (a *app) close(lg *zap.Logger) {
	if a.mqConn != nil {
		if err := a.mqConn.Close(); err != nil {
			lg.Sugar().Errorw("failed to close rabbitmq connection", "err", err)
		}
	}
	// RedisCache 与限流器共用同一个客户端，只关闭一次
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			lg.Sugar().Errorw("failed to close redis client", "err", err)
		}
	} else if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := a.db.Close(); err != nil {
		lg.Sugar().Errorw("failed to close database connection", "err", err)
	}
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Errorw("server error", "err", err)
			return
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	a, err := setup(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize application", "err", err)
	}
	defer a.close(lg)

	startServer(cfg, a.handler, lg)
}
