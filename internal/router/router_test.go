package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"teaching-workload/internal/config"
	"teaching-workload/internal/handler"
	"teaching-workload/internal/middleware"
	"teaching-workload/internal/model"
	"teaching-workload/internal/service"
	"teaching-workload/pkg/apierror"
)

type memStore struct {
	mu        sync.Mutex
	users     map[int64]model.User
	semesters map[int64]model.Semester
	audit     []model.AuditEntry
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]model.User{}, semesters: map[int64]model.Semester{}}
}

func (s *memStore) FindByID(_ context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memStore) FindFirstByRole(_ context.Context, role model.Role) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := int64(1); id <= s.nextID; id++ {
		if u, ok := s.users[id]; ok && u.Role == role {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memStore) Create(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return model.User{}, model.ErrUserAlreadyExists
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) Update(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return model.User{}, model.ErrUserNotFound
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.IsPasswordTemporary = false
	s.users[userID] = u
	return nil
}

func (s *memStore) CountByRole(_ context.Context, role model.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type memSemesters struct{ *memStore }

func (s memSemesters) FindByID(_ context.Context, id int64) (model.Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sem, ok := s.semesters[id]; ok {
		return sem, nil
	}
	return model.Semester{}, model.ErrSemesterNotFound
}

func (s memSemesters) List(_ context.Context) ([]model.Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Semester, 0, len(s.semesters))
	for _, sem := range s.semesters {
		out = append(out, sem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memSemesters) Create(_ context.Context, sem model.Semester) (model.Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sem.ID = s.nextID
	s.semesters[sem.ID] = sem
	return sem, nil
}

func (s memSemesters) Update(_ context.Context, sem model.Semester) (model.Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.semesters[sem.ID] = sem
	return sem, nil
}

type memAudit struct{ *memStore }

func (s memAudit) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s memAudit) Query(_ context.Context, _ model.AuditQuery) ([]model.AuditEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.audit...), len(s.audit), nil
}

type stubHealth struct{ err error }

func (h stubHealth) Health(context.Context) error { return h.err }

type testServer struct {
	handler http.Handler
	store   *memStore
}

func newTestServer(t *testing.T, health healthChecker, opts ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		FrontendURL:      "http://localhost:5173",
		RequestTimeout:   5 * time.Second,
		RateLimitRPM:     -1,
		AuthRateLimitRPM: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := newMemStore()
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	tokens, err := service.NewTokenIssuer("router-test-secret", time.Hour, "test")
	require.NoError(t, err)

	auditService := service.NewAuditService(memAudit{store})
	authService := service.NewAuthService(store, hasher, tokens, auditService)
	userService := service.NewUserService(store, hasher, auditService)

	seeded, err := service.NewControllerSeeder(store, hasher, auditService, "admin", "initial-pass").Run(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)

	_, err = userService.Create(context.Background(), model.Identity{UserID: 1, Role: model.RoleController}, model.CreateUserRequest{
		Username:            "teacher",
		Password:            "teacher-pass",
		Role:                "TEACHER",
		IsPasswordTemporary: new(bool),
	})
	require.NoError(t, err)

	h := New(cfg, middleware.NewAuthMiddleware(authService), Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService),
		Semester: handler.NewSemesterHandler(service.NewSemesterService(memSemesters{store})),
		Audit:    handler.NewAuditHandler(auditService),
	}, health)

	return &testServer{handler: h, store: store}
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWithHeaders(t, method, path, token, body, nil)
}

func (s *testServer) doWithHeaders(t *testing.T, method string, path string, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username string, password string) model.LoginResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func envelopeOf(t *testing.T, rec *httptest.ResponseRecorder) apierror.Envelope {
	t.Helper()

	var envelope apierror.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("seeded controller logs in with a temporary password", func(t *testing.T) {
		resp := srv.login(t, "admin", "initial-pass")
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, model.RoleController, resp.Role)
		assert.True(t, resp.IsPasswordTemporary)
	})

	t.Run("wrong password yields the 401 envelope", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "admin", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		envelope := envelopeOf(t, rec)
		assert.Equal(t, http.StatusUnauthorized, envelope.StatusCode)
		assert.Equal(t, apierror.CodeInvalidCredentials, envelope.Code)
		assert.Equal(t, "Unauthorized", envelope.Error)
		assert.Equal(t, "/api/auth/login", envelope.Path)
		_, err := time.Parse(apierror.TimestampLayout, envelope.Timestamp)
		assert.NoError(t, err)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierror.CodeBadRequest, envelopeOf(t, rec).Code)
	})
}

func TestGuardChain(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("no token", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/semester", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, apierror.CodeInvalidToken, envelopeOf(t, rec).Code)
	})

	t.Run("teacher is forbidden from controller routes", func(t *testing.T) {
		teacher := srv.login(t, "teacher", "teacher-pass")
		for _, path := range []string{"/api/semester", "/api/users", "/api/audit"} {
			rec := srv.do(t, http.MethodGet, path, teacher.Token, nil)
			require.Equal(t, http.StatusForbidden, rec.Code, path)
			assert.Equal(t, apierror.CodeForbidden, envelopeOf(t, rec).Code)
		}
	})

	t.Run("teacher may read their profile", func(t *testing.T) {
		teacher := srv.login(t, "teacher", "teacher-pass")
		rec := srv.do(t, http.MethodGet, "/api/auth/profile", teacher.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "$2a$")
	})
}

func TestTemporaryPasswordFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	admin := srv.login(t, "admin", "initial-pass")

	rec := srv.do(t, http.MethodGet, "/api/semester", admin.Token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apierror.CodePasswordChangeRequired, envelopeOf(t, rec).Code)

	rec = srv.do(t, http.MethodGet, "/api/auth/profile", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/users/change-password", admin.Token, model.ChangePasswordRequest{Password: "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/users/change-password", admin.Token, model.ChangePasswordRequest{Password: "a-proper-password"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	// Same token: the flag is read from the store on each request.
	rec = srv.do(t, http.MethodGet, "/api/semester", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	relogin := srv.login(t, "admin", "a-proper-password")
	assert.False(t, relogin.IsPasswordTemporary)
}

func TestControllerAdministration(t *testing.T) {
	srv := newTestServer(t, nil)
	admin := srv.login(t, "admin", "initial-pass")
	rec := srv.do(t, http.MethodPost, "/api/users/change-password", admin.Token, model.ChangePasswordRequest{Password: "a-proper-password"})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("users", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/users", admin.Token, model.CreateUserRequest{
			Username: "lecturer", Password: "lecturer-pass", Role: "TEACHER",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created model.UserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.True(t, created.IsPasswordTemporary)

		rec = srv.do(t, http.MethodPost, "/api/users", admin.Token, model.CreateUserRequest{
			Username: "lecturer", Password: "lecturer-pass", Role: "TEACHER",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apierror.CodeAlreadyExists, envelopeOf(t, rec).Code)

		rec = srv.do(t, http.MethodGet, "/api/users/999", admin.Token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = srv.do(t, http.MethodGet, "/api/users/abc", admin.Token, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = srv.do(t, http.MethodGet, "/api/users", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var users []model.UserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		assert.Len(t, users, 3)
	})

	t.Run("semesters", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/semester", admin.Token, model.CreateSemesterRequest{Name: "SS 2025", Active: true})
		require.Equal(t, http.StatusCreated, rec.Code)

		var created model.Semester
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

		rec = srv.do(t, http.MethodGet, "/api/semester", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "SS 2025")
	})

	t.Run("audit", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/audit?limit=500", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list model.AuditList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, 200, list.Meta.Limit)
		assert.NotEmpty(t, list.Items)
	})
}

func TestOverlongPasswordIsRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	overlong := strings.Repeat("x", 80)

	teacher := srv.login(t, "teacher", "teacher-pass")
	rec := srv.do(t, http.MethodPost, "/api/users/change-password", teacher.Token, model.ChangePasswordRequest{Password: overlong})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, apierror.CodeBadRequest, envelopeOf(t, rec).Code)

	admin := srv.login(t, "admin", "initial-pass")
	rec = srv.do(t, http.MethodPost, "/api/users/change-password", admin.Token, model.ChangePasswordRequest{Password: "a-proper-password"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/users", admin.Token, model.CreateUserRequest{
		Username: "lecturer", Password: overlong, Role: "TEACHER",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, apierror.CodeBadRequest, envelopeOf(t, rec).Code)

	rec = srv.do(t, http.MethodPut, "/api/users/2", admin.Token, model.UpdateUserRequest{Password: &overlong})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestLastControllerCannotBeDemoted(t *testing.T) {
	srv := newTestServer(t, nil)
	admin := srv.login(t, "admin", "initial-pass")
	rec := srv.do(t, http.MethodPost, "/api/users/change-password", admin.Token, model.ChangePasswordRequest{Password: "a-proper-password"})
	require.Equal(t, http.StatusOK, rec.Code)

	teacherRole := "TEACHER"
	rec = srv.do(t, http.MethodPut, "/api/users/1", admin.Token, model.UpdateUserRequest{Role: &teacherRole})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, apierror.CodeLastController, envelopeOf(t, rec).Code)

	stored, err := srv.store.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleController, stored.Role)

	rec = srv.do(t, http.MethodPost, "/api/users", admin.Token, model.CreateUserRequest{
		Username: "deputy", Password: "deputy-pass", Role: "CONTROLLER",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/users/1", admin.Token, model.UpdateUserRequest{Role: &teacherRole})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuthRateLimitUsesConnectionAddress(t *testing.T) {
	strict := func(cfg *config.Config) { cfg.AuthRateLimitRPM = 1 }
	attempt := func(srv *testServer, forwardedFor string) int {
		return srv.doWithHeaders(t, http.MethodPost, "/api/auth/login", "",
			model.LoginRequest{Username: "admin", Password: "guess"},
			map[string]string{"X-Forwarded-For": forwardedFor}).Code
	}

	t.Run("rotating X-Forwarded-For shares one bucket", func(t *testing.T) {
		srv := newTestServer(t, nil, strict)
		assert.Equal(t, http.StatusUnauthorized, attempt(srv, "198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, attempt(srv, "198.51.100.2"))
	})

	t.Run("behind a trusted proxy each forwarded client has a bucket", func(t *testing.T) {
		srv := newTestServer(t, nil, strict, func(cfg *config.Config) { cfg.TrustProxyHeaders = true })
		assert.Equal(t, http.StatusUnauthorized, attempt(srv, "198.51.100.1"))
		assert.Equal(t, http.StatusUnauthorized, attempt(srv, "198.51.100.2"))
		assert.Equal(t, http.StatusTooManyRequests, attempt(srv, "198.51.100.1"))
	})
}

func TestAuditPageIsBounded(t *testing.T) {
	srv := newTestServer(t, nil)
	admin := srv.login(t, "admin", "initial-pass")
	rec := srv.do(t, http.MethodPost, "/api/users/change-password", admin.Token, model.ChangePasswordRequest{Password: "a-proper-password"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/audit?page="+strconv.Itoa(math.MaxInt), admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list model.AuditList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, math.MaxInt32/50, list.Meta.Page)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, stubHealth{}).handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	newTestServer(t, stubHealth{err: errors.New("db down")}).handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierror.CodeNotFound, envelopeOf(t, rec).Code)
}
