package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/spec-kit/login-service/internal/auth"
	"github.com/spec-kit/login-service/internal/config"
	"github.com/spec-kit/login-service/internal/domain"
	"github.com/spec-kit/login-service/internal/repository"
	"github.com/spec-kit/login-service/internal/wechat"
	apperrors "github.com/spec-kit/login-service/pkg/util"
)

// AuthService is the only component that mints tokens. It coordinates the
// registration, login, refresh and validation flows and implements the token
// verification interface consumed by the request gate.
type AuthService struct {
	users      repository.UserRepository
	tokenCache repository.TokenCache
	tokens     *auth.TokenManager
	wechat     wechat.CodeExchanger
	node       *snowflake.Node
	bcryptCost int
	validity   time.Duration
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TokenCache repository.TokenCache
	Wechat     wechat.CodeExchanger
	Logger     *zap.Logger
}

// TokenInfo is the result of an explicit validate-token call.
type TokenInfo struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	node, err := snowflake.NewNode(cfg.Auth.SnowflakeNodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenCache: deps.TokenCache,
		tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenValidity()),
		wechat:     deps.Wechat,
		node:       node,
		bcryptCost: cfg.Auth.BcryptCost,
		validity:   cfg.Auth.TokenValidity(),
		logger:     logger,
	}, nil
}

// TokenManager exposes the underlying codec for middleware wiring and tests.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Issue mints a fresh token for the user with a new validity window.
func (s *AuthService) Issue(user *domain.User) (string, time.Time, error) {
	return s.tokens.Generate(user.PlatformUserID, user.AuthType, user.Username, user.PlatformGlobalID)
}

// ExtractPlatformUserID fully verifies the token and returns the embedded
// identity. The gate calls this before it can know which account to load.
func (s *AuthService) ExtractPlatformUserID(token string) (int64, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return 0, err
	}
	return claims.PlatformUserID, nil
}

// Validate re-checks a decoded token against the resolved user record. A token
// that decodes correctly must still belong to the account the caller resolved;
// otherwise a leaked token could authenticate a different identity.
func (s *AuthService) Validate(token string, user *domain.User) auth.Outcome {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.Deny(auth.ReasonForDecodeError(err))
	}
	if user == nil {
		return auth.Deny(auth.ReasonIdentityNotFound)
	}
	if claims.PlatformUserID != user.PlatformUserID {
		return auth.Deny(auth.ReasonIdentityMismatch)
	}
	if !user.Active() {
		return auth.Deny(auth.ReasonIdentityDisabled)
	}
	return auth.Accept(auth.NewPrincipal(user))
}

// Register creates a new account from username and password and returns it with
// its first token.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("username already exists", nil)
	} else if !repository.IsNotFound(err) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		PlatformUserID: s.node.Generate().Int64(),
		Username:       username,
		Nickname:       username,
		PasswordHash:   hash,
		AuthType:       domain.AuthTypePassword,
		Enabled:        true,
	}

	token, exp, err := s.Issue(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastToken = token

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}
	s.recordToken(ctx, user.PlatformUserID, token)

	s.logger.Info("user registered",
		zap.Int64("platform_user_id", user.PlatformUserID),
		zap.String("auth_type", string(user.AuthType)),
	)
	return user, token, exp, nil
}

// Login authenticates an account by username and password.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid username or password")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid username or password")
	}
	if !user.Active() {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account is disabled")
	}

	token, exp, err := s.Issue(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if err := s.users.UpdateLastToken(ctx, user.PlatformUserID, token); err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastToken = token
	s.recordToken(ctx, user.PlatformUserID, token)

	s.logger.Info("user logged in", zap.Int64("platform_user_id", user.PlatformUserID))
	return user, token, exp, nil
}

// RegisterWechat exchanges a WeChat authorization code for an identity and
// creates the account on first contact. Subsequent calls with the same identity
// behave as a login.
func (s *AuthService) RegisterWechat(ctx context.Context, code string) (*domain.User, string, time.Time, error) {
	if s.wechat == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("wechat login not configured", nil)
	}
	session, err := s.wechat.Exchange(ctx, code)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("wechat authorization failed")
	}

	globalID := session.GlobalID()
	user, err := s.users.GetByGlobalID(ctx, globalID)
	switch {
	case err == nil:
		// Existing account, treat as login.
	case repository.IsNotFound(err):
		user = &domain.User{
			PlatformUserID:   s.node.Generate().Int64(),
			PlatformGlobalID: &globalID,
			Username:         fmt.Sprintf("wx_%s", globalID),
			Nickname:         fmt.Sprintf("wx_%s", globalID),
			AuthType:         domain.AuthTypeWechat,
			Enabled:          true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, "", time.Time{}, err
		}
	default:
		return nil, "", time.Time{}, err
	}

	if !user.Active() {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account is disabled")
	}

	token, exp, err := s.Issue(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if err := s.users.UpdateLastToken(ctx, user.PlatformUserID, token); err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastToken = token
	s.recordToken(ctx, user.PlatformUserID, token)

	s.logger.Info("wechat user authenticated", zap.Int64("platform_user_id", user.PlatformUserID))
	return user, token, exp, nil
}

// Refresh issues a brand-new token for the identity embedded in the old one. The
// old token's signature must verify but its expiry is ignored, so a refresh still
// works on a stale token.
func (s *AuthService) Refresh(ctx context.Context, oldToken string) (string, time.Time, error) {
	claims, err := s.tokens.ParseSkipExpiry(oldToken)
	if err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized(auth.MessageForReason(auth.ReasonForDecodeError(err)))
	}

	user, err := s.users.GetByID(ctx, claims.PlatformUserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", time.Time{}, apperrors.NewUnauthorized(auth.MessageForReason(auth.ReasonIdentityNotFound))
		}
		return "", time.Time{}, err
	}
	if !user.Active() {
		return "", time.Time{}, apperrors.NewUnauthorized(auth.MessageForReason(auth.ReasonIdentityDisabled))
	}

	token, exp, err := s.Issue(user)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.users.UpdateLastToken(ctx, user.PlatformUserID, token); err != nil {
		return "", time.Time{}, err
	}
	s.recordToken(ctx, user.PlatformUserID, token)

	s.logger.Info("token refreshed", zap.Int64("platform_user_id", user.PlatformUserID))
	return token, exp, nil
}

// ValidateToken performs the explicit validate-token query: extract the identity,
// resolve the account, then re-validate the token against it.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	userID, err := s.ExtractPlatformUserID(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized(auth.MessageForReason(auth.ReasonForDecodeError(err)))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized(auth.MessageForReason(auth.ReasonIdentityNotFound))
		}
		return nil, err
	}

	outcome := s.Validate(token, user)
	if !outcome.Valid {
		return nil, apperrors.NewUnauthorized(auth.MessageForReason(outcome.Reason))
	}
	return &TokenInfo{UserID: user.PlatformUserID, Username: user.Username}, nil
}

// recordToken stores the last issued token. Best effort: a cache failure never
// blocks issuance.
func (s *AuthService) recordToken(ctx context.Context, userID int64, token string) {
	if s.tokenCache == nil {
		return
	}
	if err := s.tokenCache.Store(ctx, userID, token, s.validity); err != nil {
		s.logger.Warn("failed to record issued token", zap.Int64("platform_user_id", userID), zap.Error(err))
	}
}
