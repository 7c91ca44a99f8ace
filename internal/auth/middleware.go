package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/login-service/internal/domain"
	"github.com/spec-kit/login-service/internal/observability"
)

// TokenVerifier is the slice of the token service the gate needs.
type TokenVerifier interface {
	// ExtractPlatformUserID fully verifies the token (signature and expiry) and
	// returns the embedded platform user id.
	ExtractPlatformUserID(token string) (int64, error)
	// Validate re-checks the token against the resolved user record.
	Validate(token string, user *domain.User) Outcome
}

// UserLookup resolves accounts by platform user id.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// IsNotFound reports whether a lookup error means the account does not exist, as
// opposed to an infrastructure failure.
type IsNotFound func(error) bool

// RequestGate validates bearer tokens once per request and loads principals.
// Paths matching a bypass prefix skip verification entirely.
type RequestGate struct {
	tokens     TokenVerifier
	users      UserLookup
	isNotFound IsNotFound
	bypass     []string
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewRequestGate constructs the gate middleware.
func NewRequestGate(tokens TokenVerifier, users UserLookup, isNotFound IsNotFound, bypass []string, logger *zap.Logger, metrics *observability.Metrics) *RequestGate {
	return &RequestGate{
		tokens:     tokens,
		users:      users,
		isNotFound: isNotFound,
		bypass:     bypass,
		logger:     logger,
		metrics:    metrics,
	}
}

// Handle enforces authentication for protected routes. Every path through it ends
// in exactly one of c.Next() or Reject().
func (g *RequestGate) Handle(c *fiber.Ctx) error {
	path := c.Path()
	if g.bypassed(path) {
		return c.Next()
	}

	// Double-processing guard for nested middleware chains.
	if _, ok := PrincipalFromContext(c); ok {
		return c.Next()
	}

	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		g.reject(c, ReasonMissingHeader, nil)
		return Reject(c, ReasonMissingHeader)
	}

	// Decode failures short-circuit before any user lookup.
	userID, err := g.tokens.ExtractPlatformUserID(token)
	if err != nil {
		reason := ReasonForDecodeError(err)
		g.reject(c, reason, err)
		return Reject(c, reason)
	}

	user, err := g.users.GetByID(c.UserContext(), userID)
	if err != nil {
		if g.isNotFound != nil && g.isNotFound(err) {
			g.reject(c, ReasonIdentityNotFound, nil)
			return Reject(c, ReasonIdentityNotFound)
		}
		g.reject(c, ReasonInternal, err)
		return Reject(c, ReasonInternal)
	}

	outcome := g.tokens.Validate(token, user)
	if !outcome.Valid {
		g.reject(c, outcome.Reason, nil)
		return Reject(c, outcome.Reason)
	}

	StorePrincipal(c, outcome.Principal)
	g.metrics.RecordAuthDecision("continue")
	g.logger.Debug("request authenticated",
		zap.Int64("platform_user_id", outcome.Principal.PlatformUserID),
		zap.String("path", path),
	)
	return c.Next()
}

func (g *RequestGate) bypassed(path string) bool {
	for _, prefix := range g.bypass {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *RequestGate) reject(c *fiber.Ctx, reason Reason, err error) {
	g.metrics.RecordAuthDecision(string(reason))
	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.String("path", c.Path()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	g.logger.Warn("request rejected", fields...)
}

// bearerToken extracts the token from an Authorization header. Returns false when
// the header is absent or not a Bearer credential.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
