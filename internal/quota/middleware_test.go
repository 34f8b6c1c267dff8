package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate-ai/neuragate/internal/accounts"
	"github.com/neuragate-ai/neuragate/internal/auth"
)

type quotaRejection struct {
	Error struct {
		Code      string `json:"code"`
		Limits    Counts `json:"limits"`
		Current   Counts `json:"current"`
		ResetTime string `json:"resetTime"`
	} `json:"error"`
}

func meteredFixture(t *testing.T, usage accounts.Usage, plan accounts.Plan) (*accounts.MemoryStore, *accounts.Account, http.Handler) {
	t.Helper()

	store := accounts.NewMemoryStore()
	a := &accounts.Account{
		ID:       uuid.New(),
		Email:    "metered@example.com",
		IsActive: true,
		Plan:     plan,
		Usage:    usage,
	}
	require.NoError(t, store.Create(context.Background(), a))

	handler := Metered(NewLedger(store), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return store, a, handler
}

func serveAs(t *testing.T, handler http.Handler, a *accounts.Account) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
	req = req.WithContext(auth.ContextWithAccount(req.Context(), a))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMetered_AdmitsAndCommits(t *testing.T) {
	now := time.Now().UTC()
	store, a, handler := meteredFixture(t, accounts.Usage{Daily: 10, Monthly: 10, LastReset: now}, accounts.PlanFree)

	rec := serveAs(t, handler, a)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "39", rec.Header().Get("X-Quota-Daily-Remaining"))
	assert.Equal(t, "989", rec.Header().Get("X-Quota-Monthly-Remaining"))

	stored, err := store.LoadByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), stored.Usage.Daily)
	assert.Equal(t, int64(11), stored.Usage.Monthly)
}

func TestMetered_LastCallReportsZeroHeadroom(t *testing.T) {
	now := time.Now().UTC()
	_, a, handler := meteredFixture(t, accounts.Usage{Daily: 49, Monthly: 49, LastReset: now}, accounts.PlanFree)

	rec := serveAs(t, handler, a)

	// The final admitted call of the window reports no calls left.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Quota-Daily-Remaining"))
}

func TestMetered_DailyLimitExceeded(t *testing.T) {
	now := time.Now().UTC()
	store, a, handler := meteredFixture(t, accounts.Usage{Daily: 50, Monthly: 50, LastReset: now}, accounts.PlanFree)

	rec := serveAs(t, handler, a)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body quotaRejection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "DAILY_API_LIMIT_EXCEEDED", body.Error.Code)
	assert.Equal(t, int64(50), body.Error.Limits.Daily)
	assert.Equal(t, int64(50), body.Error.Current.Daily)
	assert.NotEmpty(t, body.Error.ResetTime)

	// A rejected request never reaches commit.
	stored, err := store.LoadByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stored.Usage.Daily)
}

func TestMetered_MonthlyLimitExceeded(t *testing.T) {
	now := time.Now().UTC()
	_, a, handler := meteredFixture(t, accounts.Usage{Daily: 0, Monthly: 1000, LastReset: now}, accounts.PlanFree)

	rec := serveAs(t, handler, a)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body quotaRejection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "MONTHLY_API_LIMIT_EXCEEDED", body.Error.Code)
}

func TestMetered_UnlimitedPlan(t *testing.T) {
	now := time.Now().UTC()
	_, a, handler := meteredFixture(t, accounts.Usage{Daily: 1 << 40, Monthly: 1 << 40, LastReset: now}, accounts.PlanEnterprise)

	rec := serveAs(t, handler, a)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unlimited", rec.Header().Get("X-Quota-Daily-Remaining"))
	assert.Equal(t, "unlimited", rec.Header().Get("X-Quota-Monthly-Remaining"))
}

func TestMetered_NoAccountInContext(t *testing.T) {
	_, _, handler := meteredFixture(t, accounts.Usage{}, accounts.PlanFree)

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetered_CommitsEvenWhenHandlerFails(t *testing.T) {
	now := time.Now().UTC()
	store := accounts.NewMemoryStore()
	a := &accounts.Account{
		ID: uuid.New(), Email: "fail@example.com", IsActive: true,
		Plan: accounts.PlanFree, Usage: accounts.Usage{Daily: 1, Monthly: 1, LastReset: now},
	}
	require.NoError(t, store.Create(context.Background(), a))

	handler := Metered(NewLedger(store), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := serveAs(t, handler, a)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	stored, err := store.LoadByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Usage.Daily)
}
