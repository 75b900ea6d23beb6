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

	"github.com/redis/go-redis/v9"

	"paginasamarelas/internal/util"
	"paginasamarelas/pkg/storage"
	"paginasamarelas/services/api/internal/app"
	"paginasamarelas/services/api/internal/config"
	"paginasamarelas/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	cacheTTL, err := config.ParseDuration("catalogCacheTTL", cfg.CatalogCacheTTL, time.Hour)
	if err != nil {
		log.Fatalf("failed to parse catalog cache TTL: %v", err)
	}
	presignExpiry, err := config.ParseDuration("minioPresignExpiry", cfg.MinioPresignExpiry, 0)
	if err != nil {
		log.Fatalf("failed to parse presign expiry: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()
	}

	appCore, err := app.New(ctx, app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		Redis:           redisClient,
		SessionMode:     cfg.SessionMode,
		SessionTTL:      sessionTTL,
		SessionSecret:   cfg.SessionSecret,
		StorageMode:     cfg.StorageMode,
		UploadDir:       cfg.UploadDir,
		UploadURLPrefix: cfg.UploadURLPrefix,
		Minio: storage.MinioOptions{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
			PresignExpiry: presignExpiry,
		},
		MaxUploadBytes:           cfg.MaxUploadBytes,
		FeedPageSize:             cfg.FeedPageSize,
		GoogleBooksAPIKey:        cfg.GoogleBooksAPIKey,
		CatalogProviders:         cfg.CatalogProviders,
		CatalogCacheTTL:          cacheTTL,
		CatalogRequestsPerMinute: cfg.CatalogRequestsPerMinute,
		Logger:                   logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Redis:                      redisClient,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		TrustedProxyCIDRs:          cfg.TrustedProxyCIDRs,
		AllowedOrigins:             cfg.AllowedOrigins,
		SessionCookieName:          cfg.SessionCookieName,
		SessionCookieSecure:        cfg.SessionCookieSecure,
		SessionTTL:                 sessionTTL,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr, "session_mode", cfg.SessionMode, "storage_mode", cfg.StorageMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
