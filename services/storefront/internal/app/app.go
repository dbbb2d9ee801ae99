package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/storefront/internal/catalog"
	"github.com/utafrali/storefront/services/storefront/internal/config"
	"github.com/utafrali/storefront/services/storefront/internal/event"
	handler "github.com/utafrali/storefront/services/storefront/internal/handler/http"
	"github.com/utafrali/storefront/services/storefront/internal/notify"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
	"github.com/utafrali/storefront/services/storefront/internal/repository/memory"
	pgrepo "github.com/utafrali/storefront/services/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/services/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/services/storefront/internal/service"
	"github.com/utafrali/storefront/services/storefront/migrations"
)

const serviceName = "storefront"

// Version is set at build time via -ldflags.
var Version = "dev"

// storage is an opened cart storage backend.
type storage struct {
	kv    repository.KVStore
	ping  health.Checker
	close func()
}

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	storage        *storage
	store          *service.CartStore
	mirror         *service.CartMirror
	producer       *pkgkafka.Producer
	publisher      *event.Publisher
	tracerShutdown func(context.Context) error
	handler        http.Handler
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
// The cart is rehydrated from storage before NewApp returns, so the first
// request already sees the persisted cart.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Cart store and its durable mirror.
	mirror := service.NewCartMirror(st.kv, service.MirrorConfig{
		Key:          cfg.CartStorageKey,
		WriteTimeout: cfg.PersistTimeout(),
	}, logger)
	store := service.NewCartStore(mirror, logger)
	store.Subscribe(mirror.OnChange)

	// Optional analytics feed.
	var (
		producer  *pkgkafka.Producer
		publisher *event.Publisher
	)
	if cfg.KafkaEnabled() {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		sessionID := uuid.NewString()
		publisher = event.NewPublisher(producer, sessionID, logger)
		store.Subscribe(publisher.OnChange)
		logger.Info("kafka producer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("session_id", sessionID),
		)
	}

	store.Init(ctx)

	// Product catalog behind retries and a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.CatalogTimeout()
	httpCfg.MaxRetries = cfg.CatalogMaxRetries
	httpCfg.RateLimit = cfg.CatalogRateLimitRPS
	httpCfg.RateBurst = cfg.CatalogRateBurst
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("catalog"),
		logger,
	)
	catalogClient := catalog.NewClient(breaker, cfg.CatalogBaseURL, logger)

	toast := notify.NewToast(cfg.ToastDuration())

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("storage", st.ping)
	healthHandler.RegisterCritical("cart_store", func(context.Context) error {
		if !store.Initialized() {
			return errors.New("cart store not initialized")
		}
		return nil
	})
	healthHandler.RegisterNonCritical("catalog", catalogClient.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Store:       store,
		Mirror:      mirror,
		Catalog:     catalogClient,
		Toast:       toast,
		Health:      healthHandler,
		Logger:      logger,
		DebugRoutes: cfg.IsDevelopment(),
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		storage:        st,
		store:          store,
		mirror:         mirror,
		producer:       producer,
		publisher:      publisher,
		tracerShutdown: tracerShutdown,
		handler:        router,
		httpServer:     httpServer,
	}, nil
}

// openStorage connects the configured cart storage driver.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return &storage{
			kv:   redisrepo.NewKVStore(rdb, cfg.StorageNamespace, cfg.CartTTL()),
			ping: database.PingRedis(rdb),
			close: func() {
				if err := rdb.Close(); err != nil {
					logger.Error("redis close error", slog.String("error", err.Error()))
				}
			},
		}, nil

	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		database.SetSlowQueryLogging(200*time.Millisecond, logger)
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.String("db", cfg.PostgresDB),
		)
		return &storage{
			kv:    pgrepo.NewKVStore(pool, cfg.StorageNamespace),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil

	default:
		kv := memory.NewKVStore()
		logger.Warn("using in-memory cart storage; the cart will not survive a restart")
		return &storage{kv: kv, ping: kv.Ping, close: func() {}}, nil
	}
}

// Handler returns the HTTP handler with every route mounted.
func (a *App) Handler() http.Handler { return a.handler }

// Store returns the cart store.
func (a *App) Store() *service.CartStore { return a.store }

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
		a.Shutdown()
		return err
	}

	a.Shutdown()
	return nil
}

// Shutdown gracefully stops all components. Pending cart writes are flushed
// before storage is closed.
func (a *App) Shutdown() {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.mirror.Close(shutdownCtx); err != nil {
		a.logger.Error("cart mirror close error", slog.String("error", err.Error()))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(shutdownCtx); err != nil {
			a.logger.Error("cart event publisher close error", slog.String("error", err.Error()))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	a.storage.close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
}
