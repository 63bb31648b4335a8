package candles

import (
	"context"
	"fmt"
	"time"

	"github.com/openbook-candles-go/internal/model"
)

// bootstrapLookback is how many of a constituent resolution's earliest
// candles a fresh higher-order batcher reads to find its own starting
// bucket — mirrors fetch_earliest_candles's hardcoded LIMIT 2000.
const bootstrapLookback = 2000

// ConstituentSource is the read dependency the higher-order batcher needs
// for its constituent resolution's candles.
type ConstituentSource interface {
	ListRange(ctx context.Context, marketName string, resolution model.Resolution, start, end time.Time) ([]model.Candle, error)
	EarliestCandles(ctx context.Context, marketName string, resolution model.Resolution, limit int) ([]model.Candle, error)
}

// BatchHigherOrder computes every new candle for marketName at resolution
// from its constituent resolution's candles — mirrors
// batch_higher_order_candles.
func BatchHigherOrder(ctx context.Context, candlesStore interface {
	CandleSource
	ConstituentSource
}, marketName string, resolution model.Resolution, now time.Time) ([]model.Candle, error) {
	constituent, ok := resolution.Constituent()
	if !ok {
		return nil, fmt.Errorf("candles: %s has no constituent resolution", resolution)
	}

	latest, ok, err := candlesStore.LatestCompleteCandle(ctx, marketName, resolution)
	if err != nil {
		return nil, fmt.Errorf("candles: latest %s candle: %w", resolution, err)
	}

	if ok {
		startTime := latest.EndTime
		endTime := startTime.Add(24 * time.Hour)
		rows, err := candlesStore.ListRange(ctx, marketName, constituent, startTime, endTime)
		if err != nil {
			return nil, fmt.Errorf("candles: list %s range: %w", constituent, err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return combineIntoHigherOrderCandles(rows, resolution, startTime, now), nil
	}

	bootstrap, err := candlesStore.EarliestCandles(ctx, marketName, constituent, bootstrapLookback)
	if err != nil {
		return nil, fmt.Errorf("candles: earliest %s candles: %w", constituent, err)
	}
	if len(bootstrap) == 0 {
		return nil, nil
	}

	startTime := bootstrap[0].StartTime.Truncate(24 * time.Hour)
	combined := combineIntoHigherOrderCandles(bootstrap, resolution, startTime, now)
	return trimCandles(combined, bootstrap[0].StartTime), nil
}

// combineIntoHigherOrderCandles buckets constituent (ascending by
// start_time) into resolution-width buckets starting at st, carrying the
// last close forward across buckets with no constituent candles —
// mirrors combine_into_higher_order_candles, including its trailing
// possibly-incomplete bucket.
func combineIntoHigherOrderCandles(constituent []model.Candle, resolution model.Resolution, st time.Time, now time.Time) []model.Candle {
	duration := resolution.Duration()
	marketName := constituent[0].MarketName

	truncatedNow := now.Truncate(time.Minute)
	window := truncatedNow.Sub(st)
	if window > 24*time.Hour {
		window = 24 * time.Hour
	}
	numCandles := int(window/duration) + 1
	if numCandles < 1 {
		numCandles = 1
	}

	out := make([]model.Candle, numCandles)
	for i := range out {
		out[i] = model.EmptyCandle(marketName, resolution)
	}

	lastClose := constituent[0].Close
	idx := 0
	startTime := st
	endTime := st.Add(duration)

	for i := range out {
		out[i].Open = lastClose
		out[i].Low = lastClose
		out[i].Close = lastClose
		out[i].High = lastClose

		for idx < len(constituent) && !constituent[idx].EndTime.After(endTime) {
			unit := constituent[idx]
			out[i].High = maxF(out[i].High, unit.High)
			out[i].Low = minF(out[i].Low, unit.Low)
			out[i].Close = unit.Close
			out[i].Volume += unit.Volume
			out[i].Complete = unit.Complete
			out[i].EndTime = unit.EndTime
			idx++
		}

		out[i].StartTime = startTime
		out[i].EndTime = endTime

		startTime = endTime
		endTime = endTime.Add(duration)
		lastClose = out[i].Close
	}

	return out
}

// trimCandles drops every leading bucket whose end_time falls at or
// before startTime, the pre-history padding combineIntoHigherOrderCandles
// produces when bootstrapping from a day-truncated start — mirrors
// trim_candles.
func trimCandles(c []model.Candle, startTime time.Time) []model.Candle {
	i := 0
	for i < len(c) {
		if !c[i].EndTime.After(startTime) {
			c = append(c[:i], c[i+1:]...)
			continue
		}
		i++
	}
	return c
}
