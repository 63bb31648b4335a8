// Package registry holds the in-memory set of known markets the decoder
// and scrapers consult. It is loaded once at process startup and never
// hot-reloaded within a run; a market discovered mid-run becomes visible
// only once it is marked active and the process is restarted. Task
// restarts by the scheduler reuse the same Registry and do not reload it.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/openbook-candles-go/internal/model"
)

// MarketStore is the read dependency Load needs: a single query returning
// every active market.
type MarketStore interface {
	ListActiveMarkets(ctx context.Context) ([]model.MarketMetadata, error)
}

// Registry is an immutable, concurrency-safe lookup of known markets by
// public key.
type Registry struct {
	mu     sync.RWMutex
	byPK   map[string]model.MarketMetadata
	byName map[string]model.MarketMetadata
}

// Load builds a Registry from every active market in store.
func Load(ctx context.Context, store MarketStore) (*Registry, error) {
	markets, err := store.ListActiveMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list active markets: %w", err)
	}

	r := &Registry{
		byPK:   make(map[string]model.MarketMetadata, len(markets)),
		byName: make(map[string]model.MarketMetadata, len(markets)),
	}
	for _, m := range markets {
		r.byPK[m.MarketPK] = m
		r.byName[m.MarketName] = m
	}
	return r, nil
}

// Lookup satisfies decoder.MarketLookup.
func (r *Registry) Lookup(marketPK string) (model.MarketMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byPK[marketPK]
	return m, ok
}

// LookupByName returns a market by its human-readable name, used by the
// candle batchers which key candles by market_name rather than pubkey.
func (r *Registry) LookupByName(name string) (model.MarketMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Markets returns a snapshot of every market the registry knows about, in
// no particular order.
func (r *Registry) Markets() []model.MarketMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.MarketMetadata, 0, len(r.byPK))
	for _, m := range r.byPK {
		out = append(out, m)
	}
	return out
}
