// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// NewPool creates and validates a pgxpool connection pool.
// It retries to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, l logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	attempts := max(1, cfg.ConnectAttempts)
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		l.Warn("Database connect attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// EnsureSchema creates the tables and indexes the service needs when they
// are missing. It never alters existing objects.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
