//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"teaching-workload/internal/config"
	"teaching-workload/internal/database"
	"teaching-workload/internal/handler"
	"teaching-workload/internal/middleware"
	"teaching-workload/internal/repository"
	"teaching-workload/internal/router"
	"teaching-workload/internal/service"
)

const (
	initialController = "admin"
	initialPassword   = "initial-pass"
)

// newTestDB connects to TEST_DATABASE_URL inside a throwaway schema so tests
// never see each other's rows.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	baseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if baseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin, err := pgxpool.New(ctx, baseURL)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	parsed, err := url.Parse(baseURL)
	require.NoError(t, err)
	query := parsed.Query()
	query.Set("search_path", schema)
	parsed.RawQuery = query.Encode()

	db, err := database.New(ctx, parsed.String(), 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func newServer(t *testing.T) (*httptest.Server, *database.DB) {
	t.Helper()

	db := newTestDB(t)
	users := repository.NewUserRepository(db.Pool)
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	tokens, err := service.NewTokenIssuer("integration-secret", time.Hour, "integration")
	require.NoError(t, err)

	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	authService := service.NewAuthService(users, hasher, tokens, auditService)
	userService := service.NewUserService(users, hasher, auditService)

	_, err = service.NewControllerSeeder(users, hasher, auditService, initialController, initialPassword).Run(context.Background())
	require.NoError(t, err)

	cfg := &config.Config{
		FrontendURL:      "http://localhost:5173",
		RequestTimeout:   10 * time.Second,
		RateLimitRPM:     -1,
		AuthRateLimitRPM: 1000,
	}

	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService),
		Semester: handler.NewSemesterHandler(service.NewSemesterService(repository.NewSemesterRepository(db.Pool))),
		Audit:    handler.NewAuditHandler(auditService),
	}, db))
	t.Cleanup(server.Close)

	return server, db
}

func doJSON(t *testing.T, method string, target string, token string, payload any) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req, err := http.NewRequest(method, target, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
