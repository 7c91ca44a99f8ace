package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/login-service/internal/auth"
	"github.com/spec-kit/login-service/internal/config"
	"github.com/spec-kit/login-service/internal/domain"
	"github.com/spec-kit/login-service/internal/service"
	apperrors "github.com/spec-kit/login-service/pkg/util"
)

const svcTestSecret = "service-test-secret"

type memoryUsers struct {
	byID map[int64]*domain.User
}

func newMemoryUsers(users ...*domain.User) *memoryUsers {
	m := &memoryUsers{byID: make(map[int64]*domain.User)}
	for _, u := range users {
		m.byID[u.PlatformUserID] = u
	}
	return m
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.byID[user.PlatformUserID] = user
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if user, ok := m.byID[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range m.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) GetByGlobalID(_ context.Context, globalID string) (*domain.User, error) {
	for _, user := range m.byID {
		if user.PlatformGlobalID != nil && *user.PlatformGlobalID == globalID {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) UpdateLastToken(_ context.Context, id int64, token string) error {
	user, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastToken = token
	return nil
}

func newService(t *testing.T, users *memoryUsers) *service.AuthService {
	t.Helper()
	svc, err := service.NewAuthService(config.Config{Auth: config.AuthConfig{
		JWTSecret:          svcTestSecret,
		TokenValidityHours: 10,
		BcryptCost:         4,
		SnowflakeNodeID:    1,
	}}, service.AuthDependencies{UserRepo: users})
	require.NoError(t, err)
	return svc
}

func requireDomainStatus(t *testing.T, err error, status int) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %v", err)
	assert.Equal(t, status, domainErr.HTTPStatus)
}

func TestRegisterIssuesValidToken(t *testing.T) {
	users := newMemoryUsers()
	svc := newService(t, users)

	user, token, exp, err := svc.Register(context.Background(), "alice", "secret-pw")
	require.NoError(t, err)
	require.NotZero(t, user.PlatformUserID)
	assert.Equal(t, domain.AuthTypePassword, user.AuthType)
	assert.True(t, user.Enabled)
	assert.True(t, exp.After(time.Now()))
	assert.Equal(t, token, user.LastToken)

	outcome := svc.Validate(token, user)
	require.True(t, outcome.Valid)
	assert.Equal(t, user.PlatformUserID, outcome.Principal.PlatformUserID)
	assert.Equal(t, []string{auth.RoleUser}, outcome.Principal.Roles)

	// The stored hash must verify against the original password.
	assert.NoError(t, auth.ComparePassword(user.PasswordHash, "secret-pw"))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	users := newMemoryUsers()
	svc := newService(t, users)

	_, _, _, err := svc.Register(context.Background(), "alice", "secret-pw")
	require.NoError(t, err)

	_, _, _, err = svc.Register(context.Background(), "alice", "another-pw")
	requireDomainStatus(t, err, 409)
}

func TestLogin(t *testing.T) {
	users := newMemoryUsers()
	svc := newService(t, users)

	registered, firstToken, _, err := svc.Register(context.Background(), "alice", "secret-pw")
	require.NoError(t, err)

	t.Run("success issues a fresh token", func(t *testing.T) {
		user, token, _, err := svc.Login(context.Background(), "alice", "secret-pw")
		require.NoError(t, err)
		assert.Equal(t, registered.PlatformUserID, user.PlatformUserID)
		assert.NotEmpty(t, token)
		assert.Equal(t, token, user.LastToken)
		_ = firstToken // both tokens stay valid until their own expiry

		outcome := svc.Validate(token, user)
		assert.True(t, outcome.Valid)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, _, err := svc.Login(context.Background(), "alice", "wrong")
		requireDomainStatus(t, err, 401)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, _, _, err := svc.Login(context.Background(), "nobody", "secret-pw")
		requireDomainStatus(t, err, 401)
	})

	t.Run("banned account", func(t *testing.T) {
		registered.Banned = true
		defer func() { registered.Banned = false }()
		_, _, _, err := svc.Login(context.Background(), "alice", "secret-pw")
		requireDomainStatus(t, err, 401)
	})
}

func TestValidateIdentityMismatch(t *testing.T) {
	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	mallory := &domain.User{PlatformUserID: 43, Username: "mallory", AuthType: domain.AuthTypePassword, Enabled: true}
	svc := newService(t, newMemoryUsers(alice, mallory))

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	outcome := svc.Validate(token, mallory)
	require.False(t, outcome.Valid)
	assert.Equal(t, auth.ReasonIdentityMismatch, outcome.Reason)
}

func TestValidateDisabledIdentity(t *testing.T) {
	disabled := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: false}
	svc := newService(t, newMemoryUsers(disabled))

	token, _, err := svc.Issue(disabled)
	require.NoError(t, err)

	outcome := svc.Validate(token, disabled)
	require.False(t, outcome.Valid)
	assert.Equal(t, auth.ReasonIdentityDisabled, outcome.Reason)
}

func TestValidateDecodeFailures(t *testing.T) {
	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	svc := newService(t, newMemoryUsers(alice))

	outcome := svc.Validate("garbage", alice)
	require.False(t, outcome.Valid)
	assert.Equal(t, auth.ReasonMalformed, outcome.Reason)

	forged := auth.NewTokenManager("forged", 10*time.Hour)
	forgedToken, _, err := forged.Generate(42, domain.AuthTypePassword, "alice", nil)
	require.NoError(t, err)

	outcome = svc.Validate(forgedToken, alice)
	require.False(t, outcome.Valid)
	assert.Equal(t, auth.ReasonBadSignature, outcome.Reason)
}

func TestRefreshAcceptsExpiredToken(t *testing.T) {
	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	svc := newService(t, newMemoryUsers(alice))

	past := time.Now().Add(-24 * time.Hour)
	stale := auth.NewTokenManager(svcTestSecret, 10*time.Hour).
		WithClock(func() time.Time { return past })
	oldToken, _, err := stale.Generate(42, domain.AuthTypePassword, "alice", nil)
	require.NoError(t, err)

	newToken, exp, err := svc.Refresh(context.Background(), oldToken)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)
	assert.True(t, exp.After(time.Now()))

	outcome := svc.Validate(newToken, alice)
	assert.True(t, outcome.Valid)
}

func TestRefreshRejectsUnknownIdentity(t *testing.T) {
	svc := newService(t, newMemoryUsers())

	token, _, err := svc.TokenManager().Generate(999, domain.AuthTypePassword, "ghost", nil)
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), token)
	requireDomainStatus(t, err, 401)
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	svc := newService(t, newMemoryUsers(alice))

	forged := auth.NewTokenManager("forged", 10*time.Hour)
	token, _, err := forged.Generate(42, domain.AuthTypePassword, "alice", nil)
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), token)
	requireDomainStatus(t, err, 401)
	assert.Contains(t, err.Error(), "Invalid JWT Signature")
}

func TestValidateTokenQuery(t *testing.T) {
	alice := &domain.User{PlatformUserID: 42, Username: "alice", AuthType: domain.AuthTypePassword, Enabled: true}
	svc := newService(t, newMemoryUsers(alice))

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	info, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.UserID)
	assert.Equal(t, "alice", info.Username)

	past := time.Now().Add(-24 * time.Hour)
	stale := auth.NewTokenManager(svcTestSecret, 10*time.Hour).
		WithClock(func() time.Time { return past })
	expired, _, err := stale.Generate(42, domain.AuthTypePassword, "alice", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), expired)
	requireDomainStatus(t, err, 401)
	assert.Contains(t, err.Error(), "Token has expired")
}
