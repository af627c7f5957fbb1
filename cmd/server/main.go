// Package main provides the API server entry point for the CleanWard backend.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleanward/internal/adapter"
	"github.com/cleanward/internal/api"
	"github.com/cleanward/internal/auth"
	"github.com/cleanward/internal/config"
	"github.com/cleanward/internal/events"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/ratelimit"
	"github.com/cleanward/internal/retry"
	"github.com/cleanward/internal/service"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/wards"
	"github.com/cleanward/internal/worker"
)

func main() {
	fmt.Println("CleanWard API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer func() { _ = logger.Sync() }()

	issues := cfg.Validate()
	for _, issue := range issues {
		logger.WithField("issue", issue).Warn("configuration problem")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Database.ConnectAttempts
	policy.InitialDelay = cfg.Database.ConnectBackoff

	// Connect to Postgres. Without it the server still serves wards.
	var postgres *storage.PostgresDB
	if _, err := retry.Do(ctx, "connect_postgres", policy, func(ctx context.Context, _ int) error {
		db, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
		if err != nil {
			return err
		}
		postgres = db
		return nil
	}); err != nil {
		logger.WithError(err).Error("Postgres unreachable, running in degraded mode")
		issues = append(issues, "Postgres is unreachable; only ward data is served")
	} else {
		defer postgres.Close()
	}

	// Connect to Redis
	var redisCache *storage.RedisCache
	if _, err := retry.Do(ctx, "connect_redis", policy, func(ctx context.Context, _ int) error {
		c, err := storage.NewRedisCache(ctx, &cfg.Database.Redis)
		if err != nil {
			return err
		}
		redisCache = c
		return nil
	}); err != nil {
		logger.WithError(err).Error("Redis unreachable, continuing without cache")
		issues = append(issues, "Redis is unreachable; sign-out revocation and sign-up throttling are disabled")
	} else {
		defer func() { _ = redisCache.Close() }()
	}

	// ClickHouse holds reading history and is optional
	var readings service.ReadingStore
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unreachable, reading history disabled")
			issues = append(issues, "ClickHouse is unreachable; reading history is unavailable")
		} else {
			defer func() { _ = clickhouse.Close() }()
			readings = storage.NewReadingRepository(clickhouse)
		}
	}

	// Object storage for proof images
	var blobs service.BlobStorage
	if cfg.Storage.Bucket != "" {
		s3Client, err := storage.NewS3Client(ctx, &cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Object storage unavailable, proof uploads disabled")
			issues = append(issues, "object storage could not be configured; proof uploads are disabled")
		} else {
			blobs = storage.NewBlobStore(s3Client, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
		}
	}

	// Sessions
	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.WithError(err).Fatal("Failed to generate session secret")
		}
	}
	tokens := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)

	var (
		profiles    *storage.ProfileRepository
		roles       auth.RoleLookup
		revocations auth.RevocationChecker
		cache       *storage.CacheService
		leaderboard service.LeaderboardCache
		revoker     service.SessionRevoker
		limiter     service.SignupLimiter
	)
	if postgres != nil {
		profiles = storage.NewProfileRepository(postgres)
		roles = profiles
	}
	if redisCache != nil {
		cache = storage.NewCacheService(redisCache, cfg.Cache.LeaderboardTTL)
		revocations = cache
		leaderboard = cache
		revoker = cache

		wl, err := ratelimit.NewWindowLimiter(&ratelimit.WindowLimiterConfig{
			Redis:  redisCache.Client(),
			Name:   "signup",
			Limit:  cfg.Auth.SignupLimit,
			Window: cfg.Auth.SignupWindow,
		})
		if err != nil {
			logger.WithError(err).Warn("Sign-up limiter disabled")
		} else {
			limiter = wl
		}
	}

	gate := auth.NewGate(tokens, revocations, roles, logger.WithField("component", "session_gate"))
	hub := events.NewHub(gate, cfg.Server.AllowedOrigins)
	go hub.Run(ctx)

	// Live pollution overlay
	var provider adapter.PollutionProvider
	if cfg.Pollution.ProviderURL != "" {
		provider = adapter.NewPollutionClient(adapter.PollutionClientConfig{
			BaseURL:             cfg.Pollution.ProviderURL,
			APIKey:              cfg.Pollution.APIKey,
			Timeout:             cfg.Pollution.Timeout,
			RequestsPerSecond:   cfg.Pollution.RequestsPerSecond,
			Burst:               cfg.Pollution.Burst,
			BreakerMaxFailures:  cfg.Pollution.BreakerMaxFailures,
			BreakerResetTimeout: cfg.Pollution.BreakerResetTimeout,
		})
	}
	overlay := wards.NewOverlay(cfg.Pollution.OverlayTTL)
	wardService := service.NewWardService(overlay, provider, readings, hub, cfg.Pollution.Concurrency)

	deps := api.Dependencies{
		Gate:     gate,
		Wards:    wardService,
		Events:   http.HandlerFunc(hub.ServeWS),
		Issues:   issues,
		Degraded: postgres == nil,
	}

	if postgres != nil {
		credentials := storage.NewCredentialRepository(postgres)
		ledger := storage.NewLedgerRepository(postgres)

		useFunction, err := profiles.ProbeCreateProfileFunction(ctx)
		if err != nil {
			logger.WithError(err).Warn("Could not probe create_user_profile, using direct inserts")
		}
		logger.WithField("use_profile_function", useFunction).Info("profile creation path selected")

		authService := service.NewAuthService(credentials, profiles, tokens, gate, revoker, limiter, service.AuthOptions{
			AllowAdminSignup:         cfg.Auth.AllowAdminSignup,
			RequireEmailConfirmation: cfg.Auth.RequireEmailConfirmation,
			BcryptCost:               cfg.Auth.BcryptCost,
			ConfirmationTTL:          cfg.Auth.ConfirmationTTL,
			UseProfileFunction:       useFunction,
		})
		taskService := service.NewTaskService(ledger, blobs, hub, cfg.Storage.MaxUploadBytes)
		reviewService := service.NewReviewService(ledger, leaderboard, hub)

		deps.Auth = authService
		deps.Profiles = service.NewProfileService(profiles, leaderboard, hub)
		deps.Tasks = taskService
		deps.Reviews = reviewService
		deps.Dashboards = service.NewDashboardService(
			profiles, leaderboard, taskService, reviewService, wardService,
			cfg.Dashboard.LeaderboardSize, cfg.Dashboard.RankingSize,
		)
	}

	// Background overlay refresh
	var overlayWorker *worker.OverlayWorker
	if provider != nil {
		overlayWorker, err = worker.NewOverlayWorker(&worker.OverlayWorkerConfig{
			Refresher:  wardService,
			Interval:   cfg.Pollution.RefreshInterval,
			RunOnStart: true,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create overlay worker")
		}
		if err := overlayWorker.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start overlay worker")
		}
		deps.Worker = overlayWorker
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		TrustedProxies:    cfg.Server.TrustedProxies,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		MaxUploadBytes:    cfg.Storage.MaxUploadBytes,
	}

	server := api.NewServer(serverConfig, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":     cfg.Server.Host,
		"port":     cfg.Server.Port,
		"degraded": deps.Degraded,
		"issues":   len(issues),
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if overlayWorker != nil {
		if err := overlayWorker.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Overlay worker did not stop cleanly")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	stop()

	logger.Info("Server exited")
}
