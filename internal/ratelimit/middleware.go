package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/auth"
	"github.com/neuragate-ai/neuragate/internal/events"
	"github.com/neuragate-ai/neuragate/internal/metrics"
)

// Middleware returns the rate-limit stage of the request pipeline for one
// limiter. On store errors it fails open: a degraded counter backend must not
// take the API down with it.
func Middleware(limiter *Limiter, publisher *events.Publisher) func(http.Handler) http.Handler {
	policy := limiter.Policy()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFor(policy.Key, r)

			decision, err := limiter.Consume(r.Context(), key)
			if err != nil {
				slog.Warn("rate limiter store error, failing open",
					"policy", policy.Name, "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				metrics.AdmissionDecisions.WithLabelValues("rate_limit", "denied").Inc()
				publisher.PublishSecurity(r.Context(), events.SecurityEvent{
					EventType: events.EventRateLimited,
					Severity:  "warning",
					Details:   policy.Name + " policy tripped by " + key,
					Timestamp: time.Now().UTC(),
				})
				api.WriteError(w, api.RateLimitExceeded(decision.RetryAfter, api.PolicyLimits{
					Capacity:      int(policy.Capacity),
					WindowSeconds: int(policy.Window.Seconds()),
				}))
				return
			}

			metrics.AdmissionDecisions.WithLabelValues("rate_limit", "admitted").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func keyFor(strategy KeyStrategy, r *http.Request) string {
	if strategy == KeyByIdentity {
		if id := auth.AccountIDFromContext(r.Context()); id != "" {
			return id
		}
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is set by the trusted reverse proxy; take the first hop.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
