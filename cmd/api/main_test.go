package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/cache"
	"github.com/penshort/userauth/internal/config"
	"github.com/penshort/userauth/internal/handler"
	"github.com/penshort/userauth/internal/metrics"
	"github.com/penshort/userauth/internal/model"
	"github.com/penshort/userauth/internal/repository"
	"github.com/penshort/userauth/internal/service"
)

type stubStore struct {
	mu    sync.Mutex
	users []*model.User
}

func (s *stubStore) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, repository.ErrEmailExists
		}
	}
	now := time.Now().UTC()
	created := *u
	created.ID = int32(len(s.users) + 1)
	created.CreatedAt, created.UpdatedAt = &now, &now
	s.users = append(s.users, &created)
	return &created, nil
}

func (s *stubStore) GetUserByID(_ context.Context, id int32) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.users) {
		return nil, repository.ErrUserNotFound
	}
	return s.users[id-1], nil
}

func (s *stubStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// denyAfter allows n calls per scope and rejects the rest.
type denyAfter struct {
	mu    sync.Mutex
	n     int
	calls map[string]int
}

func (d *denyAfter) CheckIPRateLimit(_ context.Context, scope, _ string, _, _ int) (*cache.RateLimitResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[scope]++
	if d.calls[scope] > d.n {
		return &cache.RateLimitResult{Allowed: false, RetryAfter: time.Second}, nil
	}
	return &cache.RateLimitResult{Allowed: true}, nil
}

func newTestRouter(t *testing.T, limiter *denyAfter) (http.Handler, *metrics.InMemoryRecorder) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		AppEnv:             "test",
		RateLimitEnabled:   true,
		RateLimitRPS:       1,
		RateLimitBurst:     1,
		MaxRequestBodySize: 1 << 16,
	}

	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	recorder := metrics.NewInMemory()
	svc := service.NewUserService(&stubStore{}, tokens, service.UserServiceConfig{
		PasswordCost: 4,
		TokenTTL:     time.Hour,
	}, recorder)

	deps := routerDeps{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		tokens:   tokens,
		health:   handler.NewHealthHandler(nil, nil, logger),
		users:    handler.NewUserHandler(svc, logger),
		auth:     handler.NewAuthHandler(svc, logger),
		metrics:  handler.NewMetricsHandler(recorder),
	}
	if limiter != nil {
		deps.limiter = limiter
	}

	return setupRouter(deps), recorder
}

func serve(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Hello(t *testing.T) {
	r, recorder := newTestRouter(t, nil)

	rec := serve(r, http.MethodGet, "/hello", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, world!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, uint64(1), recorder.Snapshot().HTTPRequests)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodDelete, "/hello", "").Code)
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	r, recorder := newTestRouter(t, nil)

	rec := serve(r, http.MethodPost, "/users",
		`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(r, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodPost, "/auth/token", `{"email":"ada@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := extractToken(t, rec.Body.String())

	rec = serve(r, http.MethodGet, "/auth/me", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":1`)

	foreign, err := auth.NewTokenService([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	claims, err := auth.NewClaims("ada@example.com", model.DefaultRole, 1, time.Now(), time.Hour)
	require.NoError(t, err)
	forged, err := foreign.Issue(claims)
	require.NoError(t, err)

	rec = serve(r, http.MethodGet, "/auth/me", "", "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_INVALID_SIGNATURE")

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.UsersRegistered)
	assert.Equal(t, uint64(1), snap.TokensIssued)
	assert.Equal(t, uint64(1), snap.TokensRejectedSignature)
}

func TestRouter_RateLimitedRoutes(t *testing.T) {
	limiter := &denyAfter{n: 1, calls: make(map[string]int)}
	r, _ := newTestRouter(t, limiter)

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","password":"correct-horse"}`
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/users", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/users", body).Code)

	// Login has its own bucket; lookups are not limited.
	assert.Equal(t, http.StatusUnauthorized,
		serve(r, http.MethodPost, "/auth/token", `{"email":"x@example.com","password":"wrong-pass"}`).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/1", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/1", "").Code)
}

func extractToken(t *testing.T, body string) string {
	t.Helper()
	const key = `"token":"`
	i := strings.Index(body, key)
	require.GreaterOrEqual(t, i, 0, body)
	rest := body[i+len(key):]
	j := strings.IndexByte(rest, '"')
	require.Greater(t, j, 0, body)
	return rest[:j]
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://app:s3cret@db:5432/users", "postgres://app@db:5432/users"},
		{"redis://:s3cret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"postgres://db:5432/users", "postgres://db:5432/users"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, redactURL(tt.in), tt.in)
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://app:s3cret@db:5432/users"
	err := errors.New("dial " + dsn + " failed: password=s3cret")

	got := sanitizeError(err, dsn)
	assert.NotContains(t, got, "s3cret")
	assert.Contains(t, got, "password=redacted")
	assert.Empty(t, sanitizeError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}
