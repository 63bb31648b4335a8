package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/metrics"
)

type fakeLivenessStore struct {
	stats      map[int32][3]any // count, oldest, ok
	newestSlot uint64
	slotOK     bool
	err        error
}

func (f *fakeLivenessStore) UnprocessedStats(ctx context.Context, partition int32) (int, time.Time, bool, error) {
	if f.err != nil {
		return 0, time.Time{}, false, f.err
	}
	s, ok := f.stats[partition]
	if !ok {
		return 0, time.Time{}, false, nil
	}
	return s[0].(int), s[1].(time.Time), s[2].(bool), nil
}

func (f *fakeLivenessStore) NewestSlot(ctx context.Context) (uint64, bool, error) {
	return f.newestSlot, f.slotOK, nil
}

type fakeSlotSource struct {
	slot uint64
}

func (f *fakeSlotSource) GetSlot(ctx context.Context) (uint64, error) {
	return f.slot, nil
}

func TestLivenessOnce_SetsBacklogAndLagGauges(t *testing.T) {
	oldest := time.Now().UTC().Add(-5 * time.Minute)
	store := &fakeLivenessStore{
		stats: map[int32][3]any{
			0: {7, oldest, true},
		},
		newestSlot: 100,
		slotOK:     true,
	}
	rpc := &fakeSlotSource{slot: 140}
	m := metrics.New()

	livenessOnce(context.Background(), store, rpc, 1, m, zap.NewNop())

	require.Equal(t, float64(7), testutil.ToFloat64(m.UnprocessedSignatures.WithLabelValues("0")))
	require.InDelta(t, 300, testutil.ToFloat64(m.UnprocessedSignatureAge.WithLabelValues("0")), 2)
	require.Equal(t, float64(40), testutil.ToFloat64(m.SignatureScraperLag))
}

func TestLivenessOnce_SkipsLagWhenStoreEmpty(t *testing.T) {
	store := &fakeLivenessStore{}
	rpc := &fakeSlotSource{slot: 140}
	m := metrics.New()

	livenessOnce(context.Background(), store, rpc, 1, m, zap.NewNop())

	require.Equal(t, float64(0), testutil.ToFloat64(m.SignatureScraperLag))
}
