package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spec-kit/login-service/internal/config"
)

// ErrNotConfigured is returned when WeChat credentials are absent.
var ErrNotConfigured = errors.New("wechat credentials not configured")

// Session is the identity returned by the code exchange. UnionID is the
// cross-platform identifier stored as the account's platform_global_id.
type Session struct {
	OpenID  string `json:"openid"`
	UnionID string `json:"unionid"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// CodeExchanger resolves a WeChat authorization code into a session identity.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*Session, error)
}

// Client calls the WeChat jscode2session endpoint.
type Client struct {
	cfg  config.WechatConfig
	http *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.WechatConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Exchange trades an authorization code for the user's WeChat identity.
func (c *Client) Exchange(ctx context.Context, code string) (*Session, error) {
	if c.cfg.AppID == "" || c.cfg.Secret == "" {
		return nil, ErrNotConfigured
	}

	query := url.Values{}
	query.Set("appid", c.cfg.AppID)
	query.Set("secret", c.cfg.Secret)
	query.Set("js_code", code)
	query.Set("grant_type", "authorization_code")

	endpoint := c.cfg.Endpoint + "/sns/jscode2session?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	if session.ErrCode != 0 {
		return nil, fmt.Errorf("wechat code exchange failed: %d %s", session.ErrCode, session.ErrMsg)
	}
	if session.UnionID == "" && session.OpenID == "" {
		return nil, errors.New("wechat response missing identity")
	}
	return &session, nil
}

// GlobalID returns the cross-platform identifier, falling back to the app-scoped
// openid when no unionid is granted.
func (s *Session) GlobalID() string {
	if s.UnionID != "" {
		return s.UnionID
	}
	return s.OpenID
}
