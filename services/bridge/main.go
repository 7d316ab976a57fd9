package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/diagnosis/tablelink/pkg/database"
	"github.com/diagnosis/tablelink/pkg/events"
	"github.com/diagnosis/tablelink/pkg/logger"
	mw "github.com/diagnosis/tablelink/pkg/middleware"
	"github.com/diagnosis/tablelink/services/bridge/internal/channel"
	"github.com/diagnosis/tablelink/services/bridge/internal/handlers"
	"github.com/diagnosis/tablelink/services/bridge/internal/interpreter"
	"github.com/diagnosis/tablelink/services/bridge/internal/registry"
	"github.com/diagnosis/tablelink/services/bridge/internal/repository"
	"github.com/diagnosis/tablelink/services/bridge/internal/service"
	"github.com/diagnosis/tablelink/services/bridge/migrations"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, pool, migrations.FS, "."); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Link store and idempotency cache
	var (
		store       registry.Store
		idempotency mw.IdempotencyStore
	)
	switch cfg.Links.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		store = registry.NewRedisStore(rdb)
		idempotency = registry.NewRedisIdempotencyStore(rdb)
	default:
		store = registry.NewMemoryStore()
		idempotency = mw.NewMemoryIdempotencyStore()
	}

	// Connect to event bus
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		publisher = np
	}
	defer publisher.Close()

	signer, err := auth.NewSigner(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Error("Failed to create signer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(pool)
	tableRepo := repository.NewTableRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)

	trustedProxies, err := mw.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		logger.Error("Invalid RATE_LIMIT_TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}
	limiter := mw.NewRateLimiter(rateLimitRepo, mw.RateLimitConfig{
		Requests:       cfg.RateLimit.Requests,
		Window:         cfg.RateLimit.Window,
		Scope:          "bridge",
		TrustedProxies: trustedProxies,
	})

	// Outbound channel
	var sender channel.Sender = channel.NewWhatsAppSender(cfg.WhatsApp)
	if cfg.WhatsApp.DevMode {
		sender = channel.DevSender{}
	}

	// Initialize services
	reg := registry.New(store, cfg.Links.TTL(), cfg.Links.OneTime)
	linkService := service.NewLinkService(signer, reg, publisher, cfg)
	identityService := service.NewIdentityService(customerRepo, signer, publisher, cfg)
	webhookService := service.NewWebhookService(
		interpreter.New(tableRepo),
		linkService,
		channel.NewNotifier(sender),
		publisher,
		cfg,
	)

	h := handlers.New(linkService, identityService, webhookService, signer, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Router(idempotency, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go cleanupRateLimits(cleanupCtx, rateLimitRepo)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bridge service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bridge service shutdown error", "error", err)
		}
		webhookService.Wait()
	}()

	logger.Info("Starting bridge service",
		"port", cfg.Server.Port,
		"link_store", cfg.Links.Store,
		"one_time", cfg.Links.OneTime,
		"channel_enabled", cfg.WhatsApp.DevMode || (cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneNumberID != ""),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Bridge service error", "error", err)
		os.Exit(1)
	}
	<-done
}

func cleanupRateLimits(ctx context.Context, repo repository.RateLimitRepository) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("Failed to clean up rate limits", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("Cleaned up rate limits", "deleted", n)
			}
		}
	}
}
