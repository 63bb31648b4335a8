// Package store is the Postgres persistence layer: transaction/signature
// bookkeeping, fill/market/candle upserts and the read queries. Every
// statement is parameterized; bulk writes queue one single-row statement
// per row in a pgx.Batch — values are always bound, never interpolated.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig mirrors Funky1981-jax-trading-assistant's
// libs/database/config.go connection-pool shape, adapted to pgxpool's
// native knobs.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

// DefaultPoolConfig returns nominal pool settings for dsn.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 15 * time.Minute,
		RetryAttempts:   5,
		RetryDelay:      time.Second,
	}
}

// Connect opens a pgxpool.Pool with exponential-backoff retry around the
// initial dial and ping, mirroring Connect in
// libs/database/connection.go.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	var pool *pgxpool.Pool
	delay := cfg.RetryDelay

	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			continue
		}
		if err = pool.Ping(ctx); err != nil {
			pool.Close()
			continue
		}
		return pool, nil
	}

	return nil, fmt.Errorf("store: connect after %d attempts: %w", cfg.RetryAttempts+1, err)
}
