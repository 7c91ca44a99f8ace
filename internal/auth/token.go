package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/login-service/internal/domain"
)

// Typed decode failures. Every error returned from Parse is one of these; callers
// never need to inspect message text.
var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenMalformed   = errors.New("token is malformed")
)

// TokenManager handles issuing and validating JWT tokens. The secret is fixed at
// construction and read-only afterwards, so concurrent use needs no locking.
type TokenManager struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, validity time.Duration) *TokenManager {
	if validity <= 0 {
		validity = 10 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), validity: validity, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Generate builds and signs a JWT for the user. The subject is the string form of
// the platform user id.
func (tm *TokenManager) Generate(userID int64, authType domain.AuthType, name string, globalID *string) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.validity)
	claims := &Claims{
		AuthType:         authType,
		PlatformUserID:   userID,
		Name:             name,
		PlatformGlobalID: globalID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the claims. Failures map to
// ErrTokenExpired, ErrSignatureInvalid or ErrTokenMalformed.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr)
}

// ParseSkipExpiry verifies the signature but not the expiry. Used by the refresh
// flow, which must accept an authentic token past its window.
func (tm *TokenManager) ParseSkipExpiry(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (tm *TokenManager) parse(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithTimeFunc(tm.now))
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS512 {
			return nil, ErrSignatureInvalid
		}
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.PlatformUserID == 0 {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// classifyParseError reduces the library's error set to the three decode failures.
// Expiry wins over signature so an authentic stale token reports as expired.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
