package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/candles"
	"github.com/openbook-candles-go/internal/metrics"
	"github.com/openbook-candles-go/internal/model"
)

// CandleStore is the read/write dependency one market's candle batching
// task needs across every resolution it maintains.
type CandleStore interface {
	candles.FillSource
	candles.CandleSource
	candles.ConstituentSource
	Upsert(ctx context.Context, candles []model.Candle) error
}

// NewCandleBatchTask returns a Task that, on every tick, extends market's
// 1-minute candles from its fills and then rolls every higher-order
// resolution up from its immediately smaller one, upserting as it goes —
// mirrors the per-market candle batching loop in worker/main.rs, one
// iteration per tokio::time::interval tick. completionMargin is how far
// behind now a bucket's end_time must be before it's considered complete
// absent a later fill.
func NewCandleBatchTask(market model.MarketMetadata, store CandleStore, m *metrics.Metrics, tick, completionMargin time.Duration, logger *zap.Logger) Task {
	logger = logger.With(zap.String("market", market.MarketName))

	return Task{
		Name: fmt.Sprintf("candle-batch:%s", market.MarketName),
		Run: func(ctx context.Context) error {
			ticker := time.NewTicker(tick)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := batchOnce(ctx, store, market, m, completionMargin, logger); err != nil {
						return err
					}
				}
			}
		},
	}
}

func batchOnce(ctx context.Context, store CandleStore, market model.MarketMetadata, m *metrics.Metrics, completionMargin time.Duration, logger *zap.Logger) error {
	now := time.Now().UTC()

	minuteCandles, err := candles.Batch1m(ctx, store, store, market, now, completionMargin)
	if err != nil {
		return fmt.Errorf("scheduler: batch 1m candles for %s: %w", market.MarketName, err)
	}
	if len(minuteCandles) > 0 {
		if err := store.Upsert(ctx, minuteCandles); err != nil {
			return fmt.Errorf("scheduler: upsert 1m candles for %s: %w", market.MarketName, err)
		}
	}

	for _, resolution := range model.HigherOrderResolutions {
		higher, err := candles.BatchHigherOrder(ctx, store, market.MarketName, resolution, now)
		if err != nil {
			return fmt.Errorf("scheduler: batch %s candles for %s: %w", resolution, market.MarketName, err)
		}
		if len(higher) == 0 {
			continue
		}
		if err := store.Upsert(ctx, higher); err != nil {
			return fmt.Errorf("scheduler: upsert %s candles for %s: %w", resolution, market.MarketName, err)
		}
	}

	if m != nil {
		if latest, ok, err := store.LatestCompleteCandle(ctx, market.MarketName, model.Resolution1m); err == nil && ok {
			m.CandleLagSeconds.WithLabelValues(market.MarketName, string(model.Resolution1m)).Set(now.Sub(latest.EndTime).Seconds())
		}
	}

	logger.Debug("candle batch tick complete", zap.String("run_id", RunID(ctx)))
	return nil
}
