// Package redis connects to the Redis instance backing in-app notifications.
package redis

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/redis/go-redis/v9"
)

func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return cli, nil
}

func Disconnect(cli *redis.Client) error {
	if cli == nil {
		return nil
	}
	return cli.Close()
}
