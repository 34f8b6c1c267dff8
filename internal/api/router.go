package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/neuragate-ai/neuragate/internal/database"
	"github.com/neuragate-ai/neuragate/internal/events"
	mw "github.com/neuragate-ai/neuragate/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Account self-service handlers
	Me         http.HandlerFunc
	Usage      http.HandlerFunc
	DeleteMe   http.HandlerFunc
	ListEvents http.HandlerFunc

	// AI proxy handlers
	Chat   http.HandlerFunc
	Mood   http.HandlerFunc
	Speech http.HandlerFunc
	Vision http.HandlerFunc

	// Pipeline stages
	AuthMiddleware func(http.Handler) http.Handler
	QuotaMetered   func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router, including the per-class
// rate-limit stages. Address-keyed limiters mount before authentication;
// the identity-keyed AI limiter mounts after it so authenticated tenants
// behind a shared address get independent budgets.
type RouterConfig struct {
	CORSAllowedOrigins []string

	GeneralRateLimiter      func(http.Handler) http.Handler
	AuthRateLimiter         func(http.Handler) http.Handler
	RegistrationRateLimiter func(http.Handler) http.Handler
	AIProxyRateLimiter      func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB, Redis, NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["redis"] = "not configured"
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.GeneralRateLimiter != nil {
			r.Use(cfg.GeneralRateLimiter)
		}

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.RegistrationRateLimiter != nil {
					r.Use(cfg.RegistrationRateLimiter)
				}
				r.Post("/register", h.Register)
			})

			r.Group(func(r chi.Router) {
				if cfg.AuthRateLimiter != nil {
					r.Use(cfg.AuthRateLimiter)
				}
				r.Post("/login", h.Login)
				r.Post("/refresh", h.Refresh)
			})

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.Me)
				r.Delete("/", h.DeleteMe)
				r.Get("/usage", h.Usage)
				r.Get("/events", h.ListEvents)
			})

			// Metered AI proxy routes. The limiter sits inside the
			// authenticated group so identity keying sees the admitted
			// account; anonymous bursts are rejected earlier with 401,
			// and only authenticated traffic reaches this policy.
			r.Route("/ai", func(r chi.Router) {
				if cfg.AIProxyRateLimiter != nil {
					r.Use(cfg.AIProxyRateLimiter)
				}
				if h.QuotaMetered != nil {
					r.Use(h.QuotaMetered)
				}
				r.Post("/chat", h.Chat)
				r.Post("/mood", h.Mood)
				r.Post("/speech", h.Speech)
				r.Post("/vision", h.Vision)
			})
		})
	})

	return r
}
