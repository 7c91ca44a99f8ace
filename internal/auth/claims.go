package auth

import (
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/login-service/internal/domain"
)

// Claims describes the JWT payload. PlatformGlobalID is only present for
// accounts created through a cross-platform provider.
type Claims struct {
	AuthType         domain.AuthType `json:"authType"`
	PlatformUserID   int64           `json:"platformUserId"`
	Name             string          `json:"name"`
	PlatformGlobalID *string         `json:"platformGlobalId,omitempty"`
	jwt.RegisteredClaims
}
