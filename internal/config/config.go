// Package config loads runtime configuration for the ingest/candle worker
// from the environment, the same way cmd/server/main.go loads and
// validates its config, but env-only since this process has no YAML or
// CLI surface.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingRPCURL is returned when RPC_URL is not configured.
var ErrMissingRPCURL = errors.New("RPC_URL is required")

// ErrMissingDatabaseURL is returned when DATABASE_URL is not configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds the environment-derived configuration for the worker.
type Config struct {
	RPCURL          string
	DatabaseURL     string
	MetricsBindAddr string // optional; read from METRICS_BIND_ADDR but not used by the worker, which serves no metrics endpoint

	NumTransactionPartitions int
	SignaturePageSize        int
	TransactionFetchBatch    int
	TransactionFanout        int

	SignaturePollInterval  time.Duration
	PartitionPollInterval  time.Duration
	CandleBatchTick        time.Duration
	CompletionMargin       time.Duration
	RPCTimeout             time.Duration

	CrashLoopWindow time.Duration
	CrashLoopMax    int
}

// Load reads configuration from the environment, optionally loading a
// .env file first (godotenv.Load is a no-op if none exists). Required
// values are validated; callers should treat a non-nil error as a fatal
// configuration error and exit with a non-zero status.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	cfg.RPCURL = os.Getenv("RPC_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.MetricsBindAddr = os.Getenv("METRICS_BIND_ADDR")

	if v := os.Getenv("NUM_TRANSACTION_PARTITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NumTransactionPartitions = n
		}
	}
	if v := os.Getenv("TRANSACTION_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TransactionFanout = n
		}
	}

	if cfg.RPCURL == "" {
		return nil, ErrMissingRPCURL
	}
	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	return cfg, nil
}

// Default returns the nominal values before environment overrides are
// applied.
func Default() *Config {
	return &Config{
		NumTransactionPartitions: 3,
		SignaturePageSize:        1000,
		TransactionFetchBatch:    50,
		TransactionFanout:        50,

		SignaturePollInterval: time.Second,
		PartitionPollInterval: 250 * time.Millisecond,
		CandleBatchTick:       10 * time.Second,
		CompletionMargin:      10 * time.Minute,
		RPCTimeout:            30 * time.Second,

		CrashLoopWindow: 60 * time.Second,
		CrashLoopMax:    3,
	}
}
