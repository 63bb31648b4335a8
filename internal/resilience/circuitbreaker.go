// Package resilience wraps RPC calls in a circuit breaker and exponential
// backoff, adapted from Funky1981-jax-trading-assistant's
// libs/resilience/circuitbreaker.go (same gobreaker settings shape, same
// state-change logging), generalized to the Solana RPC calls the
// signature scraper and transaction scrapers make.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures an RPC circuit breaker.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MaxFailures uint32
}

// DefaultBreakerConfig returns sensible defaults for wrapping a single RPC
// method.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		MaxFailures: 5,
	}
}

// Breaker wraps gobreaker with logging, mirroring the CircuitBreaker type
// in libs/resilience/circuitbreaker.go.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreaker creates a circuit breaker that logs state transitions through
// the given logger.
func NewBreaker(cfg BreakerConfig, logger *zap.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && (counts.ConsecutiveFailures >= cfg.MaxFailures || failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](settings), name: cfg.Name}
}

// Execute runs fn under context cancellation and circuit-breaker protection.
func (b *Breaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := b.cb.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("circuit breaker %s: %w", b.name, err)
	}
	return result, nil
}

// Backoff computes the exponential backoff delay for the given attempt,
// starting at base and capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
