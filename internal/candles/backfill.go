package candles

import (
	"context"
	"fmt"
	"time"

	"github.com/openbook-candles-go/internal/model"
)

// BackfillStore is the read/write dependency the day-by-day backfill
// needs: it upserts as it goes rather than returning everything at once,
// since a full backfill can span months of 1-minute candles.
type BackfillStore interface {
	ConstituentSource
	Upsert(ctx context.Context, candles []model.Candle) error
}

// MinuteBackfillStore is the read/write dependency the day-by-day
// 1-minute backfill needs.
type MinuteBackfillStore interface {
	FillSource
	Upsert(ctx context.Context, candles []model.Candle) error
}

// BackfillMinute rebuilds every 1-minute candle for market, one day at a
// time, from its full fill history. The original backfill entrypoint
// calls an equivalent backfill_batch_1m_candles that isn't part of this
// port's source; this follows the same day-by-day, upsert-as-you-go
// shape as BackfillHigherOrder, applying combineFillsInto1mCandles across
// each day's fills instead of batch_1m_candles's single incremental
// window.
func BackfillMinute(ctx context.Context, store MinuteBackfillStore, market model.MarketMetadata, now time.Time, completionMargin time.Duration) error {
	earliest, ok, err := store.EarliestFillTime(ctx, market.MarketPK)
	if err != nil {
		return fmt.Errorf("candles: backfill earliest fill time: %w", err)
	}
	if !ok {
		return nil
	}

	var lastClose *float64
	end := now.Truncate(time.Minute)
	startTime := earliest.Truncate(time.Minute)
	for startTime.Before(end) {
		endTime := minTime(startTime.Add(24*time.Hour), end)
		fills, err := store.FetchFillsFrom(ctx, market.MarketPK, startTime, endTime)
		if err != nil {
			return fmt.Errorf("candles: backfill fetch fills from: %w", err)
		}
		if len(fills) > 0 || lastClose != nil {
			dayCandles := combineFillsInto1mCandles(fills, market.MarketName, startTime, endTime, lastClose, now, completionMargin)
			if err := store.Upsert(ctx, dayCandles); err != nil {
				return fmt.Errorf("candles: backfill upsert 1m candles: %w", err)
			}
			if len(dayCandles) > 0 {
				close := dayCandles[len(dayCandles)-1].Close
				lastClose = &close
			}
		}
		startTime = endTime
	}

	return nil
}

// BackfillHigherOrder rebuilds every higher-order resolution for
// marketName, one day at a time, from its full history of 1-minute
// candles — mirrors backfill_batch_higher_order_candles. Unlike the
// incremental batcher, it does not consult or require a prior candle: it
// always starts from the day containing the very first 1-minute candle
// and walks forward to now.
func BackfillHigherOrder(ctx context.Context, store BackfillStore, marketName string, now time.Time) error {
	earliest, err := store.EarliestCandles(ctx, marketName, model.Resolution1m, bootstrapLookback)
	if err != nil {
		return fmt.Errorf("candles: backfill earliest 1m candles: %w", err)
	}
	if len(earliest) == 0 {
		return nil
	}

	startTime := earliest[0].StartTime.Truncate(24 * time.Hour)

	for startTime.Before(now) {
		constituent, err := store.ListRange(ctx, marketName, model.Resolution1m, startTime, startTime.Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("candles: backfill list 1m range: %w", err)
		}
		if len(constituent) == 0 {
			startTime = startTime.Add(24 * time.Hour)
			continue
		}

		var dayCandles []model.Candle
		for _, resolution := range model.HigherOrderResolutions {
			dayCandles = append(dayCandles, combineIntoHigherOrderCandles(constituent, resolution, startTime, now)...)
		}

		if err := store.Upsert(ctx, dayCandles); err != nil {
			return fmt.Errorf("candles: backfill upsert: %w", err)
		}

		startTime = startTime.Add(24 * time.Hour)
	}

	return nil
}
