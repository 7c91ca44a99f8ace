package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/login-service/internal/api/dto"
	"github.com/spec-kit/login-service/internal/auth"
	"github.com/spec-kit/login-service/internal/service"
	apperrors "github.com/spec-kit/login-service/pkg/util"
)

// AuthHandler exposes the authentication endpoints under /api/auth.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	if req.Username == "" || req.Password == "" {
		return respondError(c, apperrors.NewValidationError("username and password required", nil))
	}

	user, token, exp, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.Success("registration successful", fiber.Map{
		"user": dto.NewUserPayload(user),
		"auth": dto.AuthPayload{Token: token, ExpiresAt: exp},
	}, c.Path()))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	if req.Username == "" || req.Password == "" {
		return respondError(c, apperrors.NewValidationError("username and password required", nil))
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.Success("login successful", fiber.Map{
		"user": dto.NewUserPayload(user),
		"auth": dto.AuthPayload{Token: token, ExpiresAt: exp},
	}, c.Path()))
}

// RegisterWechat handles POST /api/auth/register/wechat.
func (h *AuthHandler) RegisterWechat(c *fiber.Ctx) error {
	var req dto.WechatRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	if req.WechatCode == "" {
		return respondError(c, apperrors.NewValidationError("wechatCode required", nil))
	}

	user, token, exp, err := h.auth.RegisterWechat(c.UserContext(), req.WechatCode)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.Success("wechat registration successful", fiber.Map{
		"user": dto.NewUserPayload(user),
		"auth": dto.AuthPayload{Token: token, ExpiresAt: exp},
	}, c.Path()))
}

// RefreshToken handles POST /api/auth/refresh-token. The old token travels in the
// Authorization header; absence is a 400, not a 401.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	token := stripBearer(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return c.Status(http.StatusBadRequest).JSON(
			dto.Error(http.StatusBadRequest, "Authorization header is missing or invalid", c.Path()))
	}

	newToken, exp, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.Success("token refreshed", dto.AuthPayload{Token: newToken, ExpiresAt: exp}, c.Path()))
}

// ValidateToken handles GET /api/auth/validate-token.
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	token := stripBearer(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			dto.Error(http.StatusUnauthorized, "Invalid JWT Token", c.Path()))
	}

	info, err := h.auth.ValidateToken(c.UserContext(), token)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.Success("token is valid", info, c.Path()))
}

// Me handles GET /api/me, a protected endpoint returning the verified principal.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(
			dto.Error(http.StatusUnauthorized, "Invalid JWT Token", c.Path()))
	}

	return c.JSON(dto.Success("ok", fiber.Map{
		"platformUserId": principal.PlatformUserID,
		"userName":       principal.Username,
		"nickName":       principal.Nickname,
		"authType":       principal.AuthType,
		"roles":          principal.Roles,
		"enabled":        principal.Enabled,
		"banned":         principal.Banned,
	}, c.Path()))
}

// respondError renders a DomainError in the standard envelope.
func respondError(c *fiber.Ctx, err error) error {
	domainErr := apperrors.ToDomainError(err)
	return c.Status(domainErr.HTTPStatus).JSON(
		dto.Error(domainErr.HTTPStatus, domainErr.Message, c.Path()))
}

func stripBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
