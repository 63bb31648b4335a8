package candles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openbook-candles-go/internal/model"
)

func TestCombineFillsInto1mCandles_SingleFillProducesSingleBucket(t *testing.T) {
	st := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	et := st.Add(2 * time.Minute)
	now := st.Add(20 * time.Minute)

	fills := []model.Fill{
		{BlockDatetime: st.Add(30 * time.Second), Price: 10, Quantity: 5},
	}

	got := combineFillsInto1mCandles(fills, "SOL-USDC", st, et, nil, now, DefaultCompletionMargin)
	require.Len(t, got, 2)

	require.Equal(t, 10.0, got[0].Open)
	require.Equal(t, 10.0, got[0].Close)
	require.Equal(t, 10.0, got[0].High)
	require.Equal(t, 10.0, got[0].Low)
	require.Equal(t, 5.0, got[0].Volume)
	require.True(t, got[0].Complete)

	require.Equal(t, 10.0, got[1].Open, "empty bucket carries the last traded price forward")
	require.Equal(t, 0.0, got[1].Volume)
	require.True(t, got[1].Complete)
}

func TestCombineFillsInto1mCandles_CarriesLastPriceAcrossGap(t *testing.T) {
	st := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	et := st.Add(3 * time.Minute)
	now := st.Add(20 * time.Minute)

	fills := []model.Fill{
		{BlockDatetime: st.Add(10 * time.Second), Price: 100, Quantity: 1},
		{BlockDatetime: st.Add(2*time.Minute + 15*time.Second), Price: 105, Quantity: 2},
	}

	got := combineFillsInto1mCandles(fills, "SOL-USDC", st, et, nil, now, DefaultCompletionMargin)
	require.Len(t, got, 3)

	require.Equal(t, 100.0, got[0].Close)
	require.Equal(t, 100.0, got[1].Open, "minute 1 has no fills and carries minute 0's close")
	require.Equal(t, 0.0, got[1].Volume)
	require.Equal(t, 100.0, got[1].Close)
	require.Equal(t, 100.0, got[2].Open, "minute 2 opens at the carried last price before its own fill")
	require.Equal(t, 105.0, got[2].Close)
	require.Equal(t, 2.0, got[2].Volume)
}

func TestCombineFillsInto1mCandles_IncompleteWithinMargin(t *testing.T) {
	st := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	et := st.Add(time.Minute)
	now := st.Add(5 * time.Minute) // within the 10m completion margin

	fills := []model.Fill{{BlockDatetime: st.Add(10 * time.Second), Price: 1, Quantity: 1}}

	got := combineFillsInto1mCandles(fills, "SOL-USDC", st, et, nil, now, DefaultCompletionMargin)
	require.Len(t, got, 1)
	require.False(t, got[0].Complete)
}

func TestCombineFillsInto1mCandles_SeedsFromPriorClose(t *testing.T) {
	st := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	et := st.Add(time.Minute)
	now := st.Add(20 * time.Minute)
	priorClose := 42.0

	got := combineFillsInto1mCandles(nil, "SOL-USDC", st, et, &priorClose, now, DefaultCompletionMargin)
	require.Len(t, got, 1)
	require.Equal(t, 42.0, got[0].Open)
	require.Equal(t, 42.0, got[0].Close)
	require.Equal(t, 0.0, got[0].Volume)
}
