package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/neuragate-ai/neuragate/internal/accounts"
	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/audit"
	"github.com/neuragate-ai/neuragate/internal/auth"
	"github.com/neuragate-ai/neuragate/internal/config"
	"github.com/neuragate-ai/neuragate/internal/database"
	"github.com/neuragate-ai/neuragate/internal/events"
	"github.com/neuragate-ai/neuragate/internal/profile"
	"github.com/neuragate-ai/neuragate/internal/providers"
	"github.com/neuragate-ai/neuragate/internal/proxy"
	"github.com/neuragate-ai/neuragate/internal/quota"
	"github.com/neuragate-ai/neuragate/internal/ratelimit"
	iredis "github.com/neuragate-ai/neuragate/internal/redis"
	"github.com/neuragate-ai/neuragate/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional: the API degrades to no event publishing without it)
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Warn("connecting to NATS, continuing without events", "error", err)
		} else {
			defer natsClient.Close()
			publisher = events.NewPublisher(natsClient.JetStream())
		}
	}

	// Accounts
	store := accounts.NewStore(pool)
	gate := accounts.NewService(store, cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutDuration)

	// Auth
	codec := auth.NewTokenCodec(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(codec, redisClient)
	authHandler := auth.NewHandler(authSvc, gate, publisher)

	// Quota
	ledger := quota.NewLedger(store)

	// Rate limiting, shared counter store in Redis
	counters := ratelimit.NewRedisStore(redisClient)
	rateLimiter := func(policy ratelimit.Policy) func(http.Handler) http.Handler {
		return ratelimit.Middleware(ratelimit.NewLimiter(policy, counters), publisher)
	}

	// AI provider
	providerClient := providers.New(providers.Config{
		BaseURL: cfg.Providers.BaseURL,
		APIKey:  cfg.Providers.APIKey,
		Timeout: cfg.Providers.Timeout,
	})
	proxyHandler := proxy.NewHandler(providerClient)

	// Audit
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)
	if natsClient != nil {
		consumer := audit.NewConsumer(auditRepo, events.NewConsumerManager(natsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Profile
	profileHandler := profile.NewHandler(store, authSvc)

	// Router
	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins:      cfg.Server.CORSAllowedOrigins,
		GeneralRateLimiter:      rateLimiter(ratelimit.PolicyGeneral),
		AuthRateLimiter:         rateLimiter(ratelimit.PolicyAuth),
		RegistrationRateLimiter: rateLimiter(ratelimit.PolicyRegistration),
		AIProxyRateLimiter:      rateLimiter(ratelimit.PolicyAIProxy),
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:         profileHandler.Me,
		Usage:      profileHandler.Usage,
		DeleteMe:   profileHandler.Delete,
		ListEvents: auditHandler.List,

		Chat:   proxyHandler.Chat,
		Mood:   proxyHandler.Mood,
		Speech: proxyHandler.Speech,
		Vision: proxyHandler.Vision,

		AuthMiddleware: auth.Middleware(codec, gate, cfg.Auth.RequireVerifiedEmail),
		QuotaMetered:   quota.Metered(ledger, publisher),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
