// Package candles builds OHLCV candles from fills and, for every
// resolution above the base one, from the immediately smaller
// resolution's candles. It is grounded directly on
// worker/candle_batching/minute_candles.rs and
// worker/candle_batching/higher_order_candles.rs, translated function for
// function.
package candles

import (
	"context"
	"fmt"
	"time"

	"github.com/openbook-candles-go/internal/model"
)

// FillSource is the read dependency the 1-minute batcher needs.
type FillSource interface {
	EarliestFillTime(ctx context.Context, marketPK string) (time.Time, bool, error)
	FetchFillsFrom(ctx context.Context, marketPK string, start, end time.Time) ([]model.Fill, error)
}

// CandleSource is the read dependency both batchers need for their base
// resolution lookups.
type CandleSource interface {
	LatestCompleteCandle(ctx context.Context, marketName string, resolution model.Resolution) (model.Candle, bool, error)
}

// DefaultCompletionMargin is how far behind now a bucket's end_time must
// be before it's considered complete in the absence of a later fill —
// mirrors minute_candles.rs's "Utc::now() - Duration::minutes(10)". Callers
// normally pass the operator-configured margin through explicitly; this is
// only a fallback for direct callers that don't have one.
const DefaultCompletionMargin = 10 * time.Minute

// Batch1m computes every new 1-minute candle for market since its latest
// completed candle (or, if none exists yet, since its earliest fill),
// up to at most 24 hours of buckets in one call — mirrors batch_1m_candles.
// completionMargin is how far behind now a bucket's end_time must be before
// it's considered complete absent a later fill.
func Batch1m(ctx context.Context, fills FillSource, candlesStore CandleSource, market model.MarketMetadata, now time.Time, completionMargin time.Duration) ([]model.Candle, error) {
	latest, ok, err := candlesStore.LatestCompleteCandle(ctx, market.MarketName, model.Resolution1m)
	if err != nil {
		return nil, fmt.Errorf("candles: latest 1m candle: %w", err)
	}

	if ok {
		startTime := latest.EndTime
		endTime := minTime(startTime.Add(24*time.Hour), now.Add(time.Minute).Truncate(time.Minute))
		fillRows, err := fills.FetchFillsFrom(ctx, market.MarketPK, startTime, endTime)
		if err != nil {
			return nil, fmt.Errorf("candles: fetch fills from: %w", err)
		}
		lastClose := latest.Close
		return combineFillsInto1mCandles(fillRows, market.MarketName, startTime, endTime, &lastClose, now, completionMargin), nil
	}

	earliest, ok, err := fills.EarliestFillTime(ctx, market.MarketPK)
	if err != nil {
		return nil, fmt.Errorf("candles: earliest fill time: %w", err)
	}
	if !ok {
		return nil, nil
	}

	startTime := earliest.Truncate(time.Minute)
	endTime := minTime(startTime.Add(24*time.Hour), now.Truncate(time.Minute))
	fillRows, err := fills.FetchFillsFrom(ctx, market.MarketPK, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("candles: fetch fills from: %w", err)
	}
	if len(fillRows) == 0 {
		return nil, nil
	}
	return combineFillsInto1mCandles(fillRows, market.MarketName, startTime, endTime, nil, now, completionMargin), nil
}

// combineFillsInto1mCandles buckets fills (already sorted ascending by
// block_datetime) into one candle per minute between st and et, carrying
// the last traded price forward across empty buckets. A trailing nil
// lastPrice means "use the first fill's price", matching the Rust
// caller's None branch for a market with no prior candle.
func combineFillsInto1mCandles(fills []model.Fill, marketName string, st, et time.Time, lastPrice *float64, now time.Time, completionMargin time.Duration) []model.Candle {
	minutes := int(et.Sub(st) / time.Minute)
	if minutes <= 0 {
		return nil
	}

	candlesOut := make([]model.Candle, minutes)
	for i := range candlesOut {
		candlesOut[i] = model.EmptyCandle(marketName, model.Resolution1m)
	}

	var last float64
	if lastPrice != nil {
		last = *lastPrice
	} else if len(fills) > 0 {
		last = fills[0].Price
	}

	idx := 0
	startTime := st
	endTime := st.Add(time.Minute)

	for i := range candlesOut {
		candlesOut[i].Open = last
		candlesOut[i].Close = last
		candlesOut[i].Low = last
		candlesOut[i].High = last

		for idx < len(fills) && fills[idx].BlockDatetime.Before(endTime) {
			f := fills[idx]
			candlesOut[i].Close = f.Price
			candlesOut[i].Low = minF(f.Price, candlesOut[i].Low)
			candlesOut[i].High = maxF(f.Price, candlesOut[i].High)
			candlesOut[i].Volume += f.Quantity
			last = f.Price
			idx++
		}

		candlesOut[i].StartTime = startTime
		candlesOut[i].EndTime = endTime
		candlesOut[i].Complete = (idx < len(fills) && fills[idx].BlockDatetime.After(endTime)) ||
			endTime.Before(now.Add(-completionMargin))

		startTime = endTime
		endTime = endTime.Add(time.Minute)
	}

	return candlesOut
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
