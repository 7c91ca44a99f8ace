package dto

import (
	"time"

	"github.com/spec-kit/login-service/internal/domain"
)

// RegisterRequest payload for username/password registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// WechatRegisterRequest payload for WeChat authorization registration.
type WechatRegisterRequest struct {
	WechatCode string `json:"wechatCode"`
}

// AuthPayload carries an issued token.
type AuthPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserPayload is the client-facing view of an account.
type UserPayload struct {
	PlatformUserID   int64     `json:"platformUserId"`
	PlatformGlobalID *string   `json:"platformGlobalId,omitempty"`
	Username         string    `json:"userName"`
	Nickname         string    `json:"nickName"`
	AuthType         string    `json:"authType"`
	Enabled          bool      `json:"enabled"`
	Banned           bool      `json:"banned"`
	CreatedAt        time.Time `json:"createdAt"`
	LastLogin        time.Time `json:"lastLogin"`
}

// NewUserPayload maps a domain user onto its client view. The password hash never
// leaves the service.
func NewUserPayload(user *domain.User) UserPayload {
	return UserPayload{
		PlatformUserID:   user.PlatformUserID,
		PlatformGlobalID: user.PlatformGlobalID,
		Username:         user.Username,
		Nickname:         user.Nickname,
		AuthType:         string(user.AuthType),
		Enabled:          user.Enabled,
		Banned:           user.Banned,
		CreatedAt:        user.CreatedAt,
		LastLogin:        user.LastLogin,
	}
}
