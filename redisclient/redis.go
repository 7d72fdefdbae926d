// Package redisclient builds the optional Redis client used by the
// status server for its notify publisher and its /ready check. An
// empty RedisURL disables Redis; New never connects, so an
// unreachable server does not fail startup.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/samara-dev/mindstream/config"
)

// New builds a client from cfg.RedisURL. A blank URL is not an error:
// it returns (nil, nil), and callers treat a nil client as "Redis
// disabled".
func New(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Ping verifies connectivity with a short timeout, used by the status
// server's /ready check. A nil client (Redis disabled) always
// succeeds, since Redis being absent is not a readiness failure.
func Ping(client *redis.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
