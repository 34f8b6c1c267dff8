package quota

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/auth"
	"github.com/neuragate-ai/neuragate/internal/events"
	"github.com/neuragate-ai/neuragate/internal/metrics"
)

// Metered is the quota stage of the request pipeline. It pre-checks the
// admitted account's windows and, when the request reaches the handler,
// commits one call afterwards — unconditional of the handler's own outcome,
// so a failed provider call still counts as a spent admission.
func Metered(ledger *Ledger, publisher *events.Publisher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := auth.AccountFromContext(r.Context())
			if account == nil {
				api.WriteError(w, api.ErrInvalidToken)
				return
			}

			now := time.Now().UTC()
			headroom, err := ledger.Check(account, now)
			if err != nil {
				var exceeded *ExceededError
				if errors.As(err, &exceeded) {
					metrics.AdmissionDecisions.WithLabelValues("quota", string(exceeded.Scope)+"_exceeded").Inc()
					publisher.PublishSecurity(r.Context(), events.SecurityEvent{
						AccountID: &account.ID,
						EventType: events.EventQuotaExceeded,
						Severity:  "warning",
						Details:   exceeded.Error(),
						Timestamp: now,
					})
					api.WriteError(w, toAPIError(exceeded))
					return
				}
				api.HandleError(w, err)
				return
			}

			metrics.AdmissionDecisions.WithLabelValues("quota", "admitted").Inc()
			setHeadroomHeaders(w, headroom)

			next.ServeHTTP(w, r)

			ledger.Commit(r.Context(), account.ID)
			publisher.PublishUsage(r.Context(), events.UsageEvent{
				AccountID: account.ID,
				Endpoint:  r.URL.Path,
				Timestamp: time.Now().UTC(),
			})
		})
	}
}

func toAPIError(e *ExceededError) *api.Error {
	limits := api.WindowCounts{Daily: e.Limits.Daily, Monthly: e.Limits.Monthly}
	currentCounts := api.WindowCounts{Daily: e.Current.Daily, Monthly: e.Current.Monthly}
	if e.Scope == ScopeDaily {
		return api.DailyLimitExceeded(limits, currentCounts, e.ResetAt)
	}
	return api.MonthlyLimitExceeded(limits, currentCounts, e.ResetAt)
}

// setHeadroomHeaders reports the calls left after this one. Check admits only
// while headroom is positive, so the value bottoms out at 0: a client reading
// 0 knows its next request will be rejected.
func setHeadroomHeaders(w http.ResponseWriter, h Headroom) {
	if h.Daily.Unlimited {
		w.Header().Set("X-Quota-Daily-Remaining", "unlimited")
	} else {
		w.Header().Set("X-Quota-Daily-Remaining", strconv.FormatInt(h.Daily.N-1, 10))
	}
	if h.Monthly.Unlimited {
		w.Header().Set("X-Quota-Monthly-Remaining", "unlimited")
	} else {
		w.Header().Set("X-Quota-Monthly-Remaining", strconv.FormatInt(h.Monthly.N-1, 10))
	}
}
