package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kader009/trustedge-backend/internal/auth"
	rediscache "github.com/kader009/trustedge-backend/internal/cache/redis"
	"github.com/kader009/trustedge-backend/internal/config"
	"github.com/kader009/trustedge-backend/internal/event"
	handler "github.com/kader009/trustedge-backend/internal/handler/http"
	"github.com/kader009/trustedge-backend/internal/repository"
	"github.com/kader009/trustedge-backend/internal/repository/memory"
	"github.com/kader009/trustedge-backend/internal/repository/postgres"
	"github.com/kader009/trustedge-backend/internal/service"
	"github.com/kader009/trustedge-backend/migrations"
	"github.com/kader009/trustedge-backend/pkg/database"
	"github.com/kader009/trustedge-backend/pkg/health"
	pkgkafka "github.com/kader009/trustedge-backend/pkg/kafka"
	"github.com/kader009/trustedge-backend/pkg/middleware"
	"github.com/kader009/trustedge-backend/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "trustedge"

// App wires together all dependencies and runs the review backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	handler        http.Handler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Whatever was opened before a failure is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	cache, err := a.openCommentCache(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	events := a.openEvents(healthHandler)

	// Build the dependency graph.
	tokens := auth.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	hasher := auth.NewHasher(cfg.BcryptCost)

	services := handler.Services{
		Users:      service.NewUserService(store, hasher, tokens, logger),
		Categories: service.NewCategoryService(store, logger),
		Products:   service.NewProductService(store, logger),
		Reviews:    service.NewReviewService(store, events, cache, logger),
		Comments:   service.NewCommentService(store, events, cache, logger),
		Votes:      service.NewVoteService(store, logger),
		Recalc:     service.NewRecalculator(store, events, logger, cfg.RecalcConcurrency),
	}

	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}

	// HTTP router.
	a.handler = handler.NewRouter(services, handler.RouterConfig{
		ServiceName: ServiceName,
		Tokens:      tokens.TokenValidator(),
		CORS:        middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins),
		Cookies:     handler.CookieConfig{
			Secure:        !cfg.IsDevelopment(),
			AccessMaxAge:  cfg.JWTAccessExpiry,
			RefreshMaxAge: cfg.JWTRefreshExpiry,
		},
		RateLimiter: a.limiter,
		Health:      healthHandler,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// openStore connects the entity store selected by STORE_DRIVER.
func (a *App) openStore(ctx context.Context, healthHandler *health.Handler) (repository.Store, error) {
	cfg := a.cfg
	if cfg.StoreDriver == config.StoreDriverMemory {
		a.logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}

	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, ServiceName)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewStore(pool), nil
}

// openCommentCache connects Redis when enabled. Without it comment threads
// are always read from the store.
func (a *App) openCommentCache(ctx context.Context, healthHandler *health.Handler) (service.CommentCache, error) {
	cfg := a.cfg
	if !cfg.RedisEnabled {
		return service.NopCache{}, nil
	}

	redisCfg := database.DefaultRedisConfig()
	redisCfg.Host = cfg.RedisHost
	redisCfg.Port = cfg.RedisPort
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB

	client, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))

	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return rediscache.NewCommentCache(client, cfg.CommentCacheTTL), nil
}

// openEvents creates the Kafka producer when enabled and discards events
// otherwise.
func (a *App) openEvents(healthHandler *health.Handler) *event.Producer {
	cfg := a.cfg
	if !cfg.KafkaEnabled {
		return event.NewProducer(pkgkafka.NopPublisher{}, a.logger)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), a.logger)
	a.producer = producer
	a.logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	return event.NewProducer(producer, a.logger)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// in-flight requests, then the tracer flushes their spans, then the
// connections close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything NewApp opened. It is safe to call on a
// partially built App.
func (a *App) closeResources() error {
	var errs []error

	if a.limiter != nil {
		a.limiter.Stop()
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return errors.Join(errs...)
}
