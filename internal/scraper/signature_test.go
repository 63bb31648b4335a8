package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/model"
	"github.com/openbook-candles-go/internal/rpcclient"
)

type fakeSignatureSource struct {
	pages   [][]rpcclient.ConfirmedSignature
	calls   int
	failN   int
	failErr error
}

func (f *fakeSignatureSource) GetSignaturesForAddress(ctx context.Context, address, before, until string, limit int) ([]rpcclient.ConfirmedSignature, error) {
	if f.calls < f.failN {
		f.calls++
		return nil, f.failErr
	}
	idx := f.calls - f.failN
	f.calls++
	if idx >= len(f.pages) {
		return nil, nil
	}
	return f.pages[idx], nil
}

type fakeSignatureSink struct {
	inserted []model.Signature
}

func (f *fakeSignatureSink) InsertSignatures(ctx context.Context, sigs []model.Signature) error {
	f.inserted = append(f.inserted, sigs...)
	return nil
}

func (f *fakeSignatureSink) NewestSignature(ctx context.Context) (string, error) {
	return "", nil
}

func testScraperConfig() SignatureScraperConfig {
	return SignatureScraperConfig{
		ProgramAddress: "program123",
		NumPartitions:  3,
		PageSize:       2,
		PollInterval:   time.Millisecond,
		RPCTimeout:     time.Second,
	}
}

func TestPageUntilCaughtUp_StopsWhenPageShorterThanPageSize(t *testing.T) {
	rpc := &fakeSignatureSource{pages: [][]rpcclient.ConfirmedSignature{
		{{Signature: "sigA"}},
	}}
	sink := &fakeSignatureSink{}
	s := NewSignatureScraper(testScraperConfig(), rpc, sink, nil, zap.NewNop())

	err := s.pageUntilCaughtUp(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.inserted, 1)
	require.Equal(t, "sigA", sink.inserted[0].Signature)
}

func TestPageUntilCaughtUp_RetriesOnTransientThenSucceeds(t *testing.T) {
	rpc := &fakeSignatureSource{
		failN:   2,
		failErr: rpcclient.ErrTransient,
		pages:   [][]rpcclient.ConfirmedSignature{{{Signature: "sigA"}}},
	}
	sink := &fakeSignatureSink{}
	s := NewSignatureScraper(testScraperConfig(), rpc, sink, nil, zap.NewNop())

	err := s.pageUntilCaughtUp(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.inserted, 1)
}

func TestPageUntilCaughtUp_ReturnsFatalErrorImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	rpc := &fakeSignatureSource{failN: 1, failErr: fatal}
	sink := &fakeSignatureSink{}
	s := NewSignatureScraper(testScraperConfig(), rpc, sink, nil, zap.NewNop())

	err := s.pageUntilCaughtUp(context.Background())
	require.ErrorIs(t, err, fatal)
}

func TestStore_AssignsPartitionToEveryRow(t *testing.T) {
	sink := &fakeSignatureSink{}
	s := NewSignatureScraper(testScraperConfig(), &fakeSignatureSource{}, sink, nil, zap.NewNop())

	page := []rpcclient.ConfirmedSignature{
		{Signature: "sigA", Slot: 10, BlockTime: 1700000000},
		{Signature: "sigB", Slot: 11, Err: true},
	}
	require.NoError(t, s.store(context.Background(), page))
	require.Len(t, sink.inserted, 2)
	for i, row := range sink.inserted {
		require.Equal(t, page[i].Signature, row.Signature)
		require.Equal(t, "program123", row.ProgramPK)
		require.Equal(t, Partition(page[i].Signature, 3), row.Partition)
		require.False(t, row.Processed)
	}
	require.True(t, sink.inserted[1].Err)
}

func TestIsTransient(t *testing.T) {
	require.True(t, isTransient(rpcclient.ErrTransient))
	require.False(t, isTransient(errors.New("some fatal error")))
}
