package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	connectapp "github.com/sellerhub/backend/internal/application/connect"
	credentialapp "github.com/sellerhub/backend/internal/application/credential"
	syncapp "github.com/sellerhub/backend/internal/application/sync"
	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/event"
	"github.com/sellerhub/backend/internal/infrastructure/archive"
	"github.com/sellerhub/backend/internal/infrastructure/auth"
	"github.com/sellerhub/backend/internal/infrastructure/cache"
	"github.com/sellerhub/backend/internal/infrastructure/config"
	"github.com/sellerhub/backend/internal/infrastructure/logger"
	"github.com/sellerhub/backend/internal/infrastructure/persistence"
	"github.com/sellerhub/backend/internal/infrastructure/providers"
	"github.com/sellerhub/backend/internal/infrastructure/telemetry"
	"github.com/sellerhub/backend/internal/infrastructure/vault"
	"github.com/sellerhub/backend/internal/interfaces/http/handler"
	"github.com/sellerhub/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SellerHub Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing and metrics
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if loggerProvider.IsEnabled() {
		// Rebuild the logger so every record is written to the configured
		// output and exported to the collector.
		log, err = telemetry.CreateBridgedLoggerFromConfig(&telemetry.BaseLoggerConfig{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		}, loggerProvider, cfg.Telemetry.ServiceName)
		if err != nil {
			log.Fatal("Failed to bridge logger to collector", zap.Error(err))
		}
		log.Info("Log export to collector enabled",
			zap.String("collector_endpoint", cfg.Telemetry.CollectorEndpoint))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("sellerhub.sync"), log)
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBMetricsEnabled {
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(context.Background())
			defer dbMetrics.Stop()
		}
	}

	// Initialize repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	orderRepo := persistence.NewGormUnifiedOrderRepository(db.DB)
	productRepo := persistence.NewGormUnifiedProductRepository(db.DB)
	syncEventRepo := persistence.NewGormSyncEventRepository(db.DB)
	durableLedger := persistence.NewGormDedupLedger(db.DB)

	// The durable ledger alone is correct; Redis in front of it only makes
	// duplicate webhook deliveries cheaper to reject.
	var ledger event.Ledger = durableLedger
	var redisDedup *cache.RedisDedupCache
	var states connection.StateStore
	if cfg.Redis.Enabled {
		redisCfg := cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		redisDedup, err = cache.NewRedisDedupCache(redisCfg, cfg.Sync.DedupTTL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisDedup.Close(); err != nil {
				log.Error("Error closing Redis dedup cache", zap.Error(err))
			}
		}()
		ledger = cache.NewTieredLedger(redisDedup, durableLedger, log)

		states = cache.NewRedisStateStoreWithClient(redisDedup.GetClient(), "")
		log.Info("Redis connected, using tiered dedup ledger and shared handshake state")
	} else {
		states = cache.NewInMemoryStateStore()
		log.Info("Redis disabled, handshake state is instance-local")
	}

	// Credential vault
	credentialVault, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		log.Fatal("Failed to initialize credential vault", zap.Error(err))
	}

	// Provider adapters: only providers with OAuth app settings are mounted
	var adapters []connection.ProviderAdapter
	if cfg.Providers.Etsy.ClientID != "" {
		etsy, err := providers.NewEtsyAdapter(&providers.EtsyConfig{
			ClientID:     cfg.Providers.Etsy.ClientID,
			ClientSecret: cfg.Providers.Etsy.ClientSecret,
			RedirectURL:  cfg.Providers.Etsy.RedirectURL,
		})
		if err != nil {
			log.Fatal("Failed to configure Etsy adapter", zap.Error(err))
		}
		adapters = append(adapters, etsy)
	}
	if cfg.Providers.Ebay.ClientID != "" {
		ebay, err := providers.NewEbayAdapter(&providers.EbayConfig{
			ClientID:     cfg.Providers.Ebay.ClientID,
			ClientSecret: cfg.Providers.Ebay.ClientSecret,
			RedirectURL:  cfg.Providers.Ebay.RedirectURL,
		})
		if err != nil {
			log.Fatal("Failed to configure eBay adapter", zap.Error(err))
		}
		adapters = append(adapters, ebay)
	}
	if cfg.Providers.Shopify.ClientID != "" {
		shopify, err := providers.NewShopifyAdapter(&providers.ShopifyConfig{
			ClientID:      cfg.Providers.Shopify.ClientID,
			ClientSecret:  cfg.Providers.Shopify.ClientSecret,
			RedirectURL:   cfg.Providers.Shopify.RedirectURL,
			WebhookSecret: cfg.Providers.Shopify.WebhookSecret,
		})
		if err != nil {
			log.Fatal("Failed to configure Shopify adapter", zap.Error(err))
		}
		adapters = append(adapters, shopify)
	}
	if len(adapters) == 0 {
		log.Warn("No provider adapters configured, connection API will reject all providers")
	}
	registry, err := providers.NewStaticRegistry(adapters...)
	if err != nil {
		log.Fatal("Failed to build provider registry", zap.Error(err))
	}
	for _, a := range registry.List() {
		log.Info("Provider adapter mounted", zap.String("provider", string(a.Metadata().Code)))
	}

	// Raw payload archiver
	var archiver syncapp.Archiver = archive.NewNoopArchiver()
	if cfg.Archive.Enabled {
		s3Archiver, err := archive.NewS3Archiver(&cfg.Archive, log)
		if err != nil {
			log.Fatal("Failed to initialize payload archiver", zap.Error(err))
		}
		archiver = s3Archiver
		log.Info("Payload archiving enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	// Application services
	credentialService := credentialapp.NewService(connectionRepo, registry, credentialVault, log)
	credentialService.SetMetrics(syncMetrics)

	connectService := connectapp.NewService(connectionRepo, registry, credentialVault, states, log)

	syncService := syncapp.NewService(
		connectionRepo,
		orderRepo,
		productRepo,
		syncEventRepo,
		ledger,
		registry,
		credentialService,
		archiver,
		log,
		syncapp.Config{
			BatchSize:       cfg.Sync.BatchSize,
			BatchBudget:     cfg.Sync.BatchBudget,
			InitialLookback: cfg.Sync.InitialLookback,
		},
	)
	syncService.SetMetrics(syncMetrics)

	// JWT for the tenant-facing API
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)

	// Background loops
	if cfg.Sync.SchedulerEnabled {
		scheduler := syncapp.NewScheduler(syncService, cfg.Sync.PollInterval, log)
		scheduler.Start(context.Background())
		defer scheduler.Stop()
		log.Info("Sync scheduler started", zap.Duration("interval", cfg.Sync.PollInterval))
	} else {
		log.Info("Sync scheduler disabled, batches run via the HTTP trigger only")
	}

	janitor := syncapp.NewJanitor(durableLedger, syncEventRepo, log,
		cfg.Sync.CleanupInterval, cfg.Sync.DedupTTL, cfg.Sync.EventRetention)
	janitor.Start(context.Background())
	defer janitor.Stop()

	// HTTP handlers
	readiness := []handler.ReadinessCheck{
		{Name: "database", Probe: func(context.Context) error { return db.Ping() }},
	}
	if redisDedup != nil {
		readiness = append(readiness, handler.ReadinessCheck{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return redisDedup.GetClient().Ping(ctx).Err() },
		})
	}
	systemHandler := handler.NewSystemHandler(readiness...)
	connectionHandler := handler.NewConnectionHandler(connectService, syncService)
	webhookHandler := handler.NewWebhookHandler(syncService, log)
	syncHandler := handler.NewSyncHandler(syncService)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Sync.TriggerToken == "" {
		log.Warn("sync.trigger_token is empty, the internal sync trigger is closed")
	}

	engine := router.New(router.Handlers{
		System:      systemHandler,
		Connections: connectionHandler,
		Webhooks:    webhookHandler,
		Sync:        syncHandler,
	}, router.Options{
		JWTService:     jwtService,
		TriggerToken:   cfg.Sync.TriggerToken,
		HTTPConfig:     &cfg.HTTP,
		Meter:          meterProvider,
		Logger:         log,
		TracingEnabled: cfg.Telemetry.Enabled,
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
