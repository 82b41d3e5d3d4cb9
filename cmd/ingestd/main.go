package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/notification-ingest/internal/config"
	"github.com/CyberwizD/notification-ingest/internal/consumer"
	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/platform"
	"github.com/CyberwizD/notification-ingest/internal/repository"
	"github.com/CyberwizD/notification-ingest/internal/routes"
	"github.com/CyberwizD/notification-ingest/internal/services"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
	"github.com/CyberwizD/notification-ingest/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting notification ingest", slog.String("app", cfg.AppName), slog.String("platform", cfg.Platform))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ingestd runs headless: OS calls land on the in-memory device, and the native shell
	// mirrors tray and badge state from the HTTP surface.
	logr.Info("using in-memory notification bridge")
	metricsCollector := metrics.New()
	deps := services.Deps{
		Bridge:  platform.NewMemoryDevice(platform.WithMemoryLogger(logr)),
		Metrics: metricsCollector,
		Logger:  logr,
	}

	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			logr.Error("failed to connect database", logger.Error(err))
			os.Exit(1)
		}
		inbox := repository.NewInboxStore(db, cfg.InboxTable)
		if err := inbox.Migrate(ctx); err != nil {
			logr.Error("failed to migrate inbox", logger.Error(err))
			os.Exit(1)
		}
		deps.Inbox = inbox
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logr.Error("invalid redis url", logger.Error(err))
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		session := repository.NewSessionStore(rdb, cfg.SessionTTL)
		defer session.Close()
		deps.Ledger = session
		deps.TokenSinks = append(deps.TokenSinks, session)
	}

	if cfg.TokenRegistrationURL != "" {
		retryCfg := retry.Config{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			JitterFactor:   0.2,
			OnRetry: func(attempt int, err error) {
				logr.Warn("token registration failed, retrying", slog.Int("attempt", attempt), logger.Error(err))
			},
		}
		deps.TokenSinks = append(deps.TokenSinks, services.NewTokenUploader(cfg.TokenRegistrationURL, cfg.ProviderTimeout, retryCfg))
	}

	pipeline := services.NewPipeline(services.NormalizerConfig{
		Platform:       cfg.Platform,
		Channel:        models.NotificationChannel{ID: cfg.ChannelID, Name: cfg.ChannelName},
		RoutingKeys:    cfg.RoutingKeys,
		MarkReadAction: cfg.MarkReadAction,
	}, deps)
	pipeline.Start(ctx)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", logger.Error(err))
		os.Exit(1)
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		cfg.PushQueue,
		cfg.DeadLetterQueue,
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	pushConsumer := consumer.NewPushConsumer(base, pipeline, logr)

	started := time.Now()
	httpSrv := startHTTPServer(cfg.HTTPPort, pipeline, metricsCollector, logr, started)

	if err := pushConsumer.Start(ctx); err != nil {
		logr.Error("push consumer exited", logger.Error(err))
	}

	shutdownHTTP(httpSrv, logr)
	pipeline.Close()
	logr.Info("notification ingest stopped")
}

func startHTTPServer(port string, pipeline *services.Pipeline, metricsCollector *metrics.Metrics, logr *slog.Logger, started time.Time) *http.Server {
	if port == "" {
		port = "8091"
	}
	srv := &http.Server{
		Addr:              "127.0.0.1:" + port,
		Handler:           routes.NewRouter(pipeline, metricsCollector, started, logr),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("http server error", logger.Error(err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", logger.Error(err))
	}
}
