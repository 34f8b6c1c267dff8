package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/neuragate-ai/neuragate/internal/accounts"
	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/metrics"
)

type contextKey string

const accountKey contextKey = "account"

// Middleware is the authentication stage of the request pipeline: it parses
// the bearer token, verifies it on the access path, and admits the account
// through the gate. Any failure short-circuits with its specific error code.
func Middleware(codec *TokenCodec, gate *accounts.Service, requireVerified bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject(w, api.ErrAuthHeaderMissing)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				reject(w, api.ErrTokenMissing)
				return
			}

			claims, err := codec.Verify(parts[1], PurposeAccess)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					reject(w, api.ErrTokenExpired)
				default:
					reject(w, api.ErrInvalidToken)
				}
				return
			}

			accountID, err := uuid.Parse(claims.AccountID)
			if err != nil {
				reject(w, api.ErrInvalidToken)
				return
			}

			account, err := gate.Admit(r.Context(), accountID, requireVerified)
			if err != nil {
				reject(w, mapAdmitError(err))
				return
			}

			metrics.AdmissionDecisions.WithLabelValues("auth", "admitted").Inc()
			ctx := context.WithValue(r.Context(), accountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, e *api.Error) {
	metrics.AdmissionDecisions.WithLabelValues("auth", e.Code).Inc()
	api.WriteError(w, e)
}

func mapAdmitError(err error) *api.Error {
	var lockedErr *accounts.LockedError
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		return api.ErrUserNotFound
	case errors.Is(err, accounts.ErrDeactivated):
		return api.ErrAccountDeactivated
	case errors.As(err, &lockedErr):
		return api.AccountLocked(lockedErr.Until)
	case errors.Is(err, accounts.ErrEmailUnverified):
		return api.ErrEmailVerificationRequired
	default:
		slog.Error("admitting account", "error", err)
		return api.ErrInternalServer
	}
}

// ContextWithAccount attaches an already-admitted account, the way the
// authentication stage does for downstream stages.
func ContextWithAccount(ctx context.Context, a *accounts.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFromContext returns the admitted account, or nil outside the
// authenticated pipeline.
func AccountFromContext(ctx context.Context) *accounts.Account {
	a, _ := ctx.Value(accountKey).(*accounts.Account)
	return a
}

// AccountIDFromContext returns the admitted account's ID string, or "" when
// the request is anonymous. Used by identity-keyed rate limiting.
func AccountIDFromContext(ctx context.Context) string {
	if a := AccountFromContext(ctx); a != nil {
		return a.ID.String()
	}
	return ""
}
