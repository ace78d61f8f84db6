package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	appintegration "github.com/chatbridge/backend/internal/application/integration"
	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/cache"
	"github.com/chatbridge/backend/internal/infrastructure/config"
	"github.com/chatbridge/backend/internal/infrastructure/event"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/marketplace"
	"github.com/chatbridge/backend/internal/infrastructure/persistence"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
	"github.com/chatbridge/backend/internal/interfaces/http/handler"
	"github.com/chatbridge/backend/internal/interfaces/http/middleware"
	"github.com/chatbridge/backend/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// publisherCloser is the event publisher plus its shutdown hook
type publisherCloser interface {
	integration.MessageEventPublisher
	Close() error
}

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

	ctx := context.Background()

	// Telemetry comes first so the OTLP log bridge sees every later entry
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log = providers.BridgeLogger(log, zap.InfoLevel)

	log.Info("Starting chat bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("platform", cfg.Marketplace.Platform),
		zap.String("version", version),
	)

	bridgeMetrics, err := telemetry.NewBridgeMetrics(providers.Meter("chat-bridge"))
	if err != nil {
		log.Warn("Bridge metrics unavailable", zap.Error(err))
		bridgeMetrics = nil
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithTracing(cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	configRepo := persistence.NewGormIntegrationConfigRepository(db.DB)
	chatRepo := persistence.NewGormChatRepository(db.DB)
	messageRepo := persistence.NewGormMessageRepository(db.DB)

	// Token cache and webhook delivery store
	stores, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStores(ctx)
	if err != nil {
		log.Fatal("Failed to initialize caches", zap.Error(err))
	}
	defer func() {
		_ = stores.Close()
	}()

	// Marketplace client
	mpConfig := &marketplace.Config{
		BaseURL:        cfg.Marketplace.BaseURL,
		TokenURL:       cfg.Marketplace.TokenURL,
		TimeoutSeconds: cfg.Marketplace.TimeoutSeconds,
		RateLimitRPS:   cfg.Marketplace.RateLimitRPS,
		RateLimitBurst: cfg.Marketplace.RateLimitBurst,
		Transport:      otelhttp.NewTransport(http.DefaultTransport),
	}
	client, err := marketplace.NewClient(mpConfig)
	if err != nil {
		log.Fatal("Invalid marketplace configuration", zap.Error(err))
	}
	client.SetMetrics(bridgeMetrics)
	tokenSource, err := marketplace.NewClientCredentialsTokenSource(mpConfig)
	if err != nil {
		log.Fatal("Invalid marketplace configuration", zap.Error(err))
	}

	// Event publishing
	publisher := newPublisher(ctx, cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Error closing event publisher", zap.Error(err))
		}
	}()

	// Application services
	platform := integration.PlatformCode(cfg.Marketplace.Platform)
	credentials := appintegration.NewCredentialStore(configRepo, platform)
	tokens := appintegration.NewTokenBroker(tokenSource, stores.Tokens, cfg.Bridge.TokenRefreshSkew)
	tokens.SetMetrics(bridgeMetrics)
	identity := appintegration.NewIdentityResolver(client, credentials)

	relay := appintegration.NewMessageRelay(client, messageRepo, tokens, platform, cfg.Marketplace.MessageWindow)
	relay.SetEventPublisher(publisher)
	relay.SetMetrics(bridgeMetrics)

	syncService := appintegration.NewChatSyncService(credentials, tokens, identity, client, chatRepo, relay,
		appintegration.WithChatPageSize(cfg.Marketplace.ChatPageSize),
		appintegration.WithRelayConcurrency(cfg.Bridge.RelayConcurrency),
	)
	syncService.SetMetrics(bridgeMetrics)

	sender := appintegration.NewOutboundSender(credentials, tokens, identity, client, chatRepo, messageRepo)
	sender.SetEventPublisher(publisher)
	sender.SetMetrics(bridgeMetrics)

	ingestService := appintegration.NewWebhookIngestService(credentials, chatRepo, messageRepo, stores.Deliveries, cfg.Bridge.WebhookDedupTTL)
	ingestService.SetEventPublisher(publisher)
	ingestService.SetMetrics(bridgeMetrics)

	registrar := appintegration.NewWebhookRegistrar(credentials, tokens, client, cfg.Bridge.WebhookURL)

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
		middleware.HTTPMetricsWithMeter(providers.Meter("http.server")),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	var dashboardMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, 10*time.Minute)
		defer limiter.Stop()
		dashboardMiddleware = append(dashboardMiddleware, middleware.RateLimit(limiter))
	}

	router.Setup(engine, router.Handlers{
		Bridge:  handler.NewBridgeHandler(syncService, sender, registrar),
		Webhook: handler.NewWebhookHandler(ingestService, cfg.Bridge.AckOnStoreFailure),
		Health:  handler.NewHealthHandler(db, version),
	}, dashboardMiddleware...)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// newPublisher returns the AMQP publisher when events are enabled.
// A broker that cannot be reached degrades to logging the events.
func newPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) publisherCloser {
	if !cfg.Events.Enabled {
		return event.NewNoopPublisher(log)
	}
	publisher, err := event.NewAMQPPublisher(ctx, event.AMQPConfig{
		URL:      cfg.Events.AMQPURL,
		Exchange: cfg.Events.Exchange,
		Producer: cfg.App.Name,
	}, log)
	if err != nil {
		log.Error("Event broker unavailable, message events will only be logged", zap.Error(err))
		return event.NewNoopPublisher(log)
	}
	return publisher
}
