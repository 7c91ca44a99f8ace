package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache records the most recently issued token per account. Issuing a new
// token overwrites the previous entry, which caps each account at one live
// session record. Entries expire with the token itself.
type TokenCache interface {
	Store(ctx context.Context, userID int64, token string, ttl time.Duration) error
	Get(ctx context.Context, userID int64) (string, error)
}

type tokenCache struct {
	client *redis.Client
}

// NewTokenCache returns a Redis-backed implementation.
func NewTokenCache(client *redis.Client) TokenCache {
	return &tokenCache{client: client}
}

func tokenKey(userID int64) string {
	return fmt.Sprintf("auth:last_token:%d", userID)
}

func (c *tokenCache) Store(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	return c.client.Set(ctx, tokenKey(userID), token, ttl).Err()
}

func (c *tokenCache) Get(ctx context.Context, userID int64) (string, error) {
	return c.client.Get(ctx, tokenKey(userID)).Result()
}
