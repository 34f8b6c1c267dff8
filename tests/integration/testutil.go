//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/neuragate-ai/neuragate/internal/accounts"
	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/audit"
	"github.com/neuragate-ai/neuragate/internal/auth"
	"github.com/neuragate-ai/neuragate/internal/profile"
	"github.com/neuragate-ai/neuragate/internal/providers"
	"github.com/neuragate-ai/neuragate/internal/proxy"
	"github.com/neuragate-ai/neuragate/internal/quota"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Store       accounts.Store
	AuthSvc     *auth.Service
	Codec       *auth.TokenCodec
	Gate        *accounts.Service
}

var testEnv *TestEnv

// stubProvider answers every AI call locally so integration tests exercise
// the admission pipeline without a live upstream.
type stubProvider struct{}

func (stubProvider) Complete(context.Context, *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	return &providers.CompletionResponse{Content: "stubbed", Model: "stub"}, nil
}

func (stubProvider) AnalyzeMood(context.Context, *providers.MoodRequest) (*providers.MoodResponse, error) {
	return &providers.MoodResponse{Mood: "neutral", Confidence: 1}, nil
}

func (stubProvider) Synthesize(context.Context, *providers.SpeechRequest) (*providers.SpeechResponse, error) {
	return &providers.SpeechResponse{AudioBase64: "", Format: "wav"}, nil
}

func (stubProvider) DescribeImage(context.Context, *providers.VisionRequest) (*providers.VisionResponse, error) {
	return &providers.VisionResponse{Description: "stubbed"}, nil
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "neuragate_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/neuragate_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services
	store := accounts.NewStore(pool)
	gate := accounts.NewService(store, 5, 15*time.Minute)

	codec := auth.NewTokenCodec(
		"test-access-secret-32-chars-long!!",
		"test-refresh-secret-32-chars-long!",
		15*time.Minute, 7*24*time.Hour,
	)
	authSvc := auth.NewService(codec, redisClient)
	authHandler := auth.NewHandler(authSvc, gate, nil)

	ledger := quota.NewLedger(store)
	proxyHandler := proxy.NewHandler(stubProvider{})
	profileHandler := profile.NewHandler(store, authSvc)
	auditHandler := audit.NewHandler(audit.NewRepository(pool))

	// No rate limiters here: per-policy behavior is exercised separately so
	// the shared env's request volume never trips a policy.
	router := api.NewRouter(pool, redisClient, nil, api.RouterConfig{}, api.HandlerSet{
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

		AuthMiddleware: auth.Middleware(codec, gate, false),
		QuotaMetered:   quota.Metered(ledger, nil),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Store:       store,
		AuthSvc:     authSvc,
		Codec:       codec,
		Gate:        gate,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}

func ErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := ParseResponse(t, resp)
	errObj, ok := result["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}
