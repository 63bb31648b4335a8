package scheduler

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/metrics"
)

// LivenessStore is the store dependency the liveness task reads from.
type LivenessStore interface {
	UnprocessedStats(ctx context.Context, partition int32) (count int, oldest time.Time, ok bool, err error)
	NewestSlot(ctx context.Context) (slot uint64, ok bool, err error)
}

// SlotSource is the RPC dependency the liveness task reads the chain head
// from.
type SlotSource interface {
	GetSlot(ctx context.Context) (uint64, error)
}

// NewLivenessTask returns a Task that, on every tick, publishes the
// backlog and scraper-lag gauges: UnprocessedSignatures and
// UnprocessedSignatureAge per partition, and SignatureScraperLag against
// the chain head slot. numPartitions must match the signature scraper's
// partition count.
func NewLivenessTask(store LivenessStore, rpc SlotSource, numPartitions int, m *metrics.Metrics, tick time.Duration, logger *zap.Logger) Task {
	logger = logger.Named("liveness")

	return Task{
		Name: "liveness",
		Run: func(ctx context.Context) error {
			ticker := time.NewTicker(tick)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					livenessOnce(ctx, store, rpc, numPartitions, m, logger)
				}
			}
		},
	}
}

func livenessOnce(ctx context.Context, store LivenessStore, rpc SlotSource, numPartitions int, m *metrics.Metrics, logger *zap.Logger) {
	now := time.Now().UTC()

	for p := 0; p < numPartitions; p++ {
		label := strconv.Itoa(p)
		count, oldest, ok, err := store.UnprocessedStats(ctx, int32(p))
		if err != nil {
			logger.Warn("unprocessed stats failed", zap.Int("partition", p), zap.Error(err))
			continue
		}
		m.UnprocessedSignatures.WithLabelValues(label).Set(float64(count))
		if ok {
			m.UnprocessedSignatureAge.WithLabelValues(label).Set(now.Sub(oldest).Seconds())
		} else {
			m.UnprocessedSignatureAge.WithLabelValues(label).Set(0)
		}
	}

	newestSlot, ok, err := store.NewestSlot(ctx)
	if err != nil {
		logger.Warn("newest slot failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	headSlot, err := rpc.GetSlot(ctx)
	if err != nil {
		logger.Warn("get slot failed", zap.Error(err))
		return
	}

	if headSlot > newestSlot {
		m.SignatureScraperLag.Set(float64(headSlot - newestSlot))
	} else {
		m.SignatureScraperLag.Set(0)
	}
}
