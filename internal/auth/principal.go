package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/login-service/internal/domain"
)

const principalKey = "auth_principal"

// RoleUser is the single role every authenticated account holds.
const RoleUser = "ROLE_USER"

// Principal represents the authenticated caller for the lifetime of one request.
// It is attached by the request gate and never persisted.
type Principal struct {
	PlatformUserID   int64
	Username         string
	Nickname         string
	AuthType         domain.AuthType
	PlatformGlobalID *string
	Roles            []string
	Enabled          bool
	Banned           bool
}

// NewPrincipal builds a principal from a verified user record.
func NewPrincipal(user *domain.User) *Principal {
	return &Principal{
		PlatformUserID:   user.PlatformUserID,
		Username:         user.Username,
		Nickname:         user.Nickname,
		AuthType:         user.AuthType,
		PlatformGlobalID: user.PlatformGlobalID,
		Roles:            []string{RoleUser},
		Enabled:          user.Enabled,
		Banned:           user.Banned,
	}
}

// Active reports whether the principal's account may act.
func (p *Principal) Active() bool {
	return p.Enabled && !p.Banned
}

// StorePrincipal attaches the principal to the request context.
func StorePrincipal(c *fiber.Ctx, p *Principal) {
	c.Locals(principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
