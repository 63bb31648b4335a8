package candles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openbook-candles-go/internal/model"
)

func oneMinuteCandles(st time.Time, n int, closePrices []float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = model.Candle{
			MarketName: "SOL-USDC",
			Resolution: model.Resolution1m,
			StartTime:  st.Add(time.Duration(i) * time.Minute),
			EndTime:    st.Add(time.Duration(i+1) * time.Minute),
			Open:       closePrices[i],
			High:       closePrices[i],
			Low:        closePrices[i],
			Close:      closePrices[i],
			Volume:     1,
			Complete:   true,
		}
	}
	return out
}

func TestCombineIntoHigherOrderCandles_RollsUpFiveOneMinuteCandles(t *testing.T) {
	st := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	constituent := oneMinuteCandles(st, 5, []float64{10, 11, 9, 12, 10})
	now := st.Add(5 * time.Minute)

	got := combineIntoHigherOrderCandles(constituent, model.Resolution5m, st, now)

	require.Len(t, got, 2, "a trailing not-yet-complete bucket is expected alongside the full one")

	full := got[0]
	require.Equal(t, 10.0, full.Open)
	require.Equal(t, 10.0, full.Close)
	require.Equal(t, 12.0, full.High)
	require.Equal(t, 9.0, full.Low)
	require.Equal(t, 5.0, full.Volume)
	require.True(t, full.Complete)
	require.Equal(t, st, full.StartTime)
	require.Equal(t, st.Add(5*time.Minute), full.EndTime)

	trailing := got[1]
	require.Equal(t, 0.0, trailing.Volume)
	require.False(t, trailing.Complete, "no constituent candles landed in the trailing bucket yet")
	require.Equal(t, 10.0, trailing.Open, "trailing bucket opens at the prior bucket's close")
}

func TestTrimCandles_DropsPreHistoryBuckets(t *testing.T) {
	st := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) // mid-day, not aligned to a day boundary
	dayStart := st.Truncate(24 * time.Hour)

	candles := []model.Candle{
		{StartTime: dayStart, EndTime: dayStart.Add(5 * time.Minute)},
		{StartTime: dayStart.Add(5 * time.Minute), EndTime: st.Add(time.Minute)}, // straddles st
		{StartTime: st.Add(time.Minute), EndTime: st.Add(6 * time.Minute)},
	}

	trimmed := trimCandles(candles, st)
	require.Len(t, trimmed, 2, "buckets ending at or before st are dropped")
	for _, c := range trimmed {
		require.True(t, c.EndTime.After(st))
	}
}
