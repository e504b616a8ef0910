package sessions

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/config"
)

// NewClient opens a Redis client for the configured session backend and
// verifies the connection.
func NewClient(ctx context.Context, cfg config.SessionConfig) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
