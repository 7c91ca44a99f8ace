package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/login-service/internal/api/http"
	"github.com/spec-kit/login-service/internal/api/http/handlers"
	"github.com/spec-kit/login-service/internal/auth"
	"github.com/spec-kit/login-service/internal/config"
	"github.com/spec-kit/login-service/internal/domain"
	"github.com/spec-kit/login-service/internal/observability"
	"github.com/spec-kit/login-service/internal/persistence"
	"github.com/spec-kit/login-service/internal/repository"
	"github.com/spec-kit/login-service/internal/service"
)

const routerTestSecret = "router-test-secret"

type stubUsers struct {
	byID              map[int64]*domain.User
	lookupHadDeadline bool
}

func newStubUsers() *stubUsers {
	return &stubUsers{byID: make(map[int64]*domain.User)}
}

func (s *stubUsers) Create(_ context.Context, user *domain.User) error {
	s.byID[user.PlatformUserID] = user
	return nil
}

func (s *stubUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	_, s.lookupHadDeadline = ctx.Deadline()
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range s.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUsers) GetByGlobalID(_ context.Context, globalID string) (*domain.User, error) {
	for _, user := range s.byID {
		if user.PlatformGlobalID != nil && *user.PlatformGlobalID == globalID {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUsers) UpdateLastToken(_ context.Context, id int64, token string) error {
	user, ok := s.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastToken = token
	return nil
}

func newTestApp(t *testing.T) (*fiber.App, *service.AuthService, *stubUsers) {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{Name: "login-service", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:          routerTestSecret,
			TokenValidityHours: 10,
			BcryptCost:         4,
			BypassPrefixes:     []string{"/api/auth", "/login", "/health"},
			SnowflakeNodeID:    1,
		},
	}

	users := newStubUsers()
	svc, err := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: users})
	require.NoError(t, err)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	gate := auth.NewRequestGate(svc, users, repository.IsNotFound, cfg.Auth.BypassPrefixes, logger, metrics)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, &persistence.Redis{}),
		Auth:   handlers.NewAuthHandler(svc),
		Gate:   gate,
	})
	return app, svc, users
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return envelope
}

func TestRegisterAndLoginFlow(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"username": "alice", "password": "secret-pw",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	assert.Equal(t, "registration successful", envelope["message"])
	assert.Equal(t, "/api/auth/register", envelope["path"])

	data := envelope["data"].(map[string]any)
	token := data["auth"].(map[string]any)["token"].(string)
	require.NotEmpty(t, token)

	// Duplicate registration conflicts.
	resp = postJSON(t, app, "/api/auth/register", map[string]string{
		"username": "alice", "password": "secret-pw",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Login with the wrong password fails.
	resp = postJSON(t, app, "/api/auth/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The issued token opens the protected endpoint.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	meResp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, meResp.StatusCode)
}

func TestRefreshTokenEndpoint(t *testing.T) {
	app, svc, users := newTestApp(t)

	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	require.NoError(t, users.Create(context.Background(), alice))

	t.Run("missing header yields 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("expired token still refreshes", func(t *testing.T) {
		past := time.Now().Add(-24 * time.Hour)
		stale := auth.NewTokenManager(routerTestSecret, 10*time.Hour).
			WithClock(func() time.Time { return past })
		oldToken, _, err := stale.Generate(42, domain.AuthTypePassword, "alice", nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
		req.Header.Set("Authorization", "Bearer "+oldToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		envelope := decodeEnvelope(t, resp)
		newToken := envelope["data"].(map[string]any)["token"].(string)
		require.NotEmpty(t, newToken)
		assert.NotEqual(t, oldToken, newToken)

		outcome := svc.Validate(newToken, alice)
		assert.True(t, outcome.Valid)
	})

	t.Run("unknown identity yields 401", func(t *testing.T) {
		token, _, err := svc.TokenManager().Generate(999, domain.AuthTypePassword, "ghost", nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestValidateTokenEndpoint(t *testing.T) {
	app, svc, users := newTestApp(t)

	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	require.NoError(t, users.Create(context.Background(), alice))

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/validate-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(42), data["userId"])
	assert.Equal(t, "alice", data["username"])

	t.Run("missing header yields 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/validate-token", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token yields 401 with fixed message", func(t *testing.T) {
		past := time.Now().Add(-24 * time.Hour)
		stale := auth.NewTokenManager(routerTestSecret, 10*time.Hour).
			WithClock(func() time.Time { return past })
		expired, _, err := stale.Generate(42, domain.AuthTypePassword, "alice", nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/validate-token", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		envelope := decodeEnvelope(t, resp)
		assert.Equal(t, "Token has expired", envelope["message"])
	})
}

func TestRequestTimeoutBoundsLookups(t *testing.T) {
	app, svc, users := newTestApp(t)

	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	require.NoError(t, users.Create(context.Background(), alice))

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The account lookup must run under the request deadline.
	assert.True(t, users.lookupHadDeadline)
}

func TestHealthLive(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
