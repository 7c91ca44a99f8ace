package domain

import "time"

// AuthType identifies how an account was created.
type AuthType string

const (
	AuthTypePassword AuthType = "account_password"
	AuthTypeWechat   AuthType = "wechat"
)

// User is the domain model for platform accounts.
type User struct {
	PlatformUserID   int64
	PlatformGlobalID *string
	Username         string
	Nickname         string
	PasswordHash     string
	AuthType         AuthType
	Enabled          bool
	Banned           bool
	LastToken        string
	CreatedAt        time.Time
	LastLogin        time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Enabled && !u.Banned
}
