package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepo resolves opaque session tokens to account ids. Sessions are
// written by the identity service; this side only reads them.
type SessionRepo struct {
	redisClient *redis.Client
}

func NewSessionRepo(rdb *redis.Client) *SessionRepo {
	return &SessionRepo{redisClient: rdb}
}

func (r *SessionRepo) Lookup(ctx context.Context, token string) (string, error) {
	accountID, err := r.redisClient.Get(ctx, "session:"+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("session lookup: %w", err)
	}
	if accountID == "" {
		return "", ErrSessionNotFound
	}
	return accountID, nil
}
