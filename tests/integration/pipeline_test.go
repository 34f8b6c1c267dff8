//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate-ai/neuragate/internal/ratelimit"
)

func TestMe(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "profile@example.com", "password123")
	token := LoginUser(t, env, "profile@example.com", "password123")

	resp := DoRequest(t, env, "GET", "/api/v1/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, "profile@example.com", data["email"])
	assert.Equal(t, "free", data["plan"])
}

func TestMe_RequiresAuth(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/api/v1/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_HEADER_MISSING", ErrorCode(t, resp))
}

func TestMeteredRequestCommitsUsage(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "metered@example.com", "password123")
	token := LoginUser(t, env, "metered@example.com", "password123")

	body := map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}}
	resp := DoRequest(t, env, "POST", "/api/v1/ai/chat", body, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "49", resp.Header.Get("X-Quota-Daily-Remaining"))
	resp.Body.Close()

	// Commit runs before the middleware returns, so the counter is visible
	// immediately after the response.
	a, err := env.Store.LoadByEmail(context.Background(), "metered@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Usage.Daily)
	assert.Equal(t, int64(1), a.Usage.Total)
}

func TestDailyQuotaExhaustion(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "exhausted@example.com", "password123")
	token := LoginUser(t, env, "exhausted@example.com", "password123")

	// Push the daily counter to the free-plan limit directly.
	a, err := env.Store.LoadByEmail(context.Background(), "exhausted@example.com")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		now := time.Now().UTC()
		require.NoError(t, env.Store.IncrementUsage(context.Background(), a.ID,
			time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
			time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)))
	}

	body := map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}}
	resp := DoRequest(t, env, "POST", "/api/v1/ai/chat", body, token)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "DAILY_API_LIMIT_EXCEEDED", ErrorCode(t, resp))
}

func TestUsageEndpoint(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "usage-view@example.com", "password123")
	token := LoginUser(t, env, "usage-view@example.com", "password123")

	resp := DoRequest(t, env, "GET", "/api/v1/me/usage", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := ParseResponse(t, resp)["data"].(map[string]any)
	daily := data["daily"].(map[string]any)
	assert.Equal(t, float64(50), daily["limit"])
}

func TestRateLimitedEndpoint(t *testing.T) {
	env := SetupTestEnv(t)

	// A dedicated server with a tight address-keyed policy on every route.
	limiter := ratelimit.NewLimiter(ratelimit.Policy{
		Name:     "integration",
		Key:      ratelimit.KeyByAddress,
		Capacity: 3,
		Window:   time.Minute,
		Block:    time.Minute,
	}, ratelimit.NewRedisStore(env.RedisClient))

	handler := ratelimit.Middleware(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server := httptest.NewServer(handler)
	defer server.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestDeleteMe(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "delete-me@example.com", "password123")
	token := LoginUser(t, env, "delete-me@example.com", "password123")

	resp := DoRequest(t, env, "DELETE", "/api/v1/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Soft-deleted: the record survives with is_active=false.
	a, err := env.Store.LoadByEmail(context.Background(), "delete-me@example.com")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.False(t, a.IsActive)

	// And the old token no longer admits.
	resp = DoRequest(t, env, "GET", "/api/v1/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSecurityEventsEndpoint(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "events@example.com", "password123")
	token := LoginUser(t, env, "events@example.com", "password123")

	resp := DoRequest(t, env, "GET", "/api/v1/me/events", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := ParseResponse(t, resp)["data"].(map[string]any)
	assert.NotNil(t, data["events"])
	assert.Equal(t, float64(0), data["total_count"])
}
