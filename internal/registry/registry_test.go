package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbook-candles-go/internal/model"
)

type fakeStore struct {
	markets []model.MarketMetadata
	err     error
}

func (f fakeStore) ListActiveMarkets(ctx context.Context) ([]model.MarketMetadata, error) {
	return f.markets, f.err
}

func TestLoad_IndexesByPubkeyAndName(t *testing.T) {
	store := fakeStore{markets: []model.MarketMetadata{
		{MarketPK: "pk1", MarketName: "SOL-USDC", Active: true},
		{MarketPK: "pk2", MarketName: "BONK-USDC", Active: true},
	}}

	reg, err := Load(context.Background(), store)
	require.NoError(t, err)

	m, ok := reg.Lookup("pk1")
	require.True(t, ok)
	require.Equal(t, "SOL-USDC", m.MarketName)

	m, ok = reg.LookupByName("BONK-USDC")
	require.True(t, ok)
	require.Equal(t, "pk2", m.MarketPK)

	_, ok = reg.Lookup("unknown")
	require.False(t, ok)
}
