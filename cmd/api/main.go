package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/edallison777/vitracka-sub003/cmd/mainconfig"
	"github.com/edallison777/vitracka-sub003/internal/api/router"
	"github.com/edallison777/vitracka-sub003/internal/audit"
	"github.com/edallison777/vitracka-sub003/internal/coaching"
	appconfig "github.com/edallison777/vitracka-sub003/internal/config"
	"github.com/edallison777/vitracka-sub003/internal/http/handlers"
	"github.com/edallison777/vitracka-sub003/internal/http/middleware"
	"github.com/edallison777/vitracka-sub003/internal/notify"
	"github.com/edallison777/vitracka-sub003/internal/observability/metrics"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

func main() {
	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vitracka concierge API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Audit trail store: Postgres when configured, in-memory otherwise.
	var auditStore audit.Store = audit.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		auditStore = audit.NewPostgresStore(db)
		logger.Info("audit trail backed by postgres")
	} else {
		logger.Warn("DATABASE_URL not set, audit trail is in-memory only")
	}

	auditor := audit.NewLogger(auditStore, logger,
		audit.WithAsyncRoutineWrites(cfg.AuditFlushInterval),
		audit.WithRequestIDFromContext(middleware.RequestIDFromContext),
		audit.WithAlertFunc(func(_ context.Context, entry audit.Entry) {
			logger.Error("safety event recorded",
				"entry_id", entry.ID,
				"severity", string(entry.Severity),
				"user_id", entry.UserID,
			)
		}),
	)
	defer func() {
		if err := auditor.Close(); err != nil {
			logger.Error("audit logger close failed", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	conciergeMetrics := metrics.NewConciergeMetrics(registry)

	// Session state, optionally persisted to Redis across restarts.
	sessionOpts := []coaching.SessionOption{
		coaching.WithSessionTTL(cfg.SessionTTL),
		coaching.WithSweepInterval(cfg.SessionSweepEvery),
	}
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOpts)
		defer func() { _ = redisClient.Close() }()
		sessionOpts = append(sessionOpts,
			coaching.WithSnapshotStore(coaching.NewRedisSnapshotStore(redisClient, cfg.SessionTTL)))
		logger.Info("session snapshots backed by redis", "addr", cfg.RedisAddr)
	} else {
		logger.Warn("REDIS_ADDR not set, sessions are in-memory only")
	}
	sessions := coaching.NewSessionManager(logger, sessionOpts...)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Admin safety alerts over SES.
	var alertSender notify.EmailSender
	if cfg.AlertFromEmail != "" && cfg.AlertToEmail != "" {
		alertSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.AlertFromEmail,
			FromName:  cfg.AlertFromName,
		}, logger)
	} else {
		logger.Warn("alert emails not configured, safety alerts are log-only")
		alertSender = notify.NewStubEmailSender(logger)
	}
	alerts := notify.NewService(alertSender, cfg.AlertToEmail, "On-Call Admin", logger)

	sentinel := coaching.NewSentinel(auditor, conciergeMetrics, logger,
		coaching.WithNotifier(alerts.NotifySafetyIntervention),
	)
	boundary := coaching.NewMedicalBoundary(auditor, conciergeMetrics, logger)

	// Specialists: deterministic responders first, the generation-backed
	// coach as the catch-all.
	llmClient := coaching.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	coach := coaching.NewCoachSpecialist(llmClient, coaching.CoachConfig{
		Model:   cfg.BedrockModelID,
		Timeout: cfg.CoachTimeout,
	}, logger)
	specialists := coaching.NewRegistry(logger,
		coaching.ProgressSpecialist{},
		coaching.MotivationSpecialist{},
		coach,
	)

	concierge := coaching.NewConcierge(sessions, sentinel, boundary, specialists, auditor, conciergeMetrics, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		ConciergeHandler:   handlers.NewConciergeHandler(concierge, logger),
		AdminAuditHandler:  handlers.NewAdminAuditHandler(auditor, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MessageRateLimit:   cfg.MessageRateLimit,
		MessageRateBurst:   cfg.MessageRateBurst,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
