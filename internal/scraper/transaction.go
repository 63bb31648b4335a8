package scraper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openbook-candles-go/internal/decoder"
	"github.com/openbook-candles-go/internal/metrics"
	"github.com/openbook-candles-go/internal/model"
	"github.com/openbook-candles-go/internal/registry"
	"github.com/openbook-candles-go/internal/resilience"
	"github.com/openbook-candles-go/internal/rpcclient"
)

// TransactionSource is the RPC dependency a transaction scraper needs.
type TransactionSource interface {
	GetTransaction(ctx context.Context, signature string) (*rpcclient.TransactionResult, error)
}

// TransactionClaimant is the read side of the store dependency: claiming
// unprocessed signatures for this partition.
type TransactionClaimant interface {
	ClaimUnprocessed(ctx context.Context, partition int32, limit int) ([]model.Signature, error)
}

// TransactionCommitter is the write side: the atomic fills+markets+
// processed-flag commit.
type TransactionCommitter interface {
	Commit(ctx context.Context, partition int32, fills []model.Fill, markets []model.MarketMetadata, processedSignatures []string) error
}

// TransactionScraperConfig configures one partition's TransactionScraper.
type TransactionScraperConfig struct {
	Partition    int32
	ClaimBatch   int
	Fanout       int
	PollInterval time.Duration
}

// TransactionScraper claims a batch of its partition's unprocessed
// signatures, fetches and decodes each one concurrently (bounded by
// Fanout), and atomically commits every fill, newly discovered market,
// and the processed flag for signatures that decoded successfully.
type TransactionScraper struct {
	cfg      TransactionScraperConfig
	rpc      TransactionSource
	claimant TransactionClaimant
	sink     TransactionCommitter
	registry *registry.Registry
	metrics  *metrics.Metrics
	breaker  *resilience.Breaker
	logger   *zap.Logger
}

// NewTransactionScraper constructs a TransactionScraper. m may be nil in
// tests.
func NewTransactionScraper(cfg TransactionScraperConfig, rpc TransactionSource, claimant TransactionClaimant, sink TransactionCommitter, reg *registry.Registry, m *metrics.Metrics, logger *zap.Logger) *TransactionScraper {
	return &TransactionScraper{
		cfg:      cfg,
		rpc:      rpc,
		claimant: claimant,
		sink:     sink,
		registry: reg,
		metrics:  m,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerConfig("transaction-scraper"), logger),
		logger:   logger.With(zap.Int32("partition", cfg.Partition)),
	}
}

// Run polls for unprocessed signatures in this partition and drains them
// until ctx is canceled or a fatal error occurs.
func (t *TransactionScraper) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.drainOnce(ctx); err != nil {
				if !isTransient(err) {
					return err
				}
				t.logger.Warn("transaction scraper: transient error, continuing", zap.Error(err))
			}
		}
	}
}

func (t *TransactionScraper) drainOnce(ctx context.Context) error {
	sigs, err := t.claimant.ClaimUnprocessed(ctx, t.cfg.Partition, t.cfg.ClaimBatch)
	if err != nil {
		return err
	}
	if len(sigs) == 0 {
		return nil
	}

	results := t.fetchAndDecode(ctx, sigs)

	var fills []model.Fill
	var markets []model.MarketMetadata
	var processed []string
	for _, r := range results {
		if r.err != nil {
			t.logger.Warn("transaction scraper: fetch/decode failed, leaving unprocessed",
				zap.String("signature", r.signature), zap.Error(r.err))
			continue
		}
		fills = append(fills, r.fills...)
		markets = append(markets, r.markets...)
		processed = append(processed, r.signature)
	}

	if err := t.sink.Commit(ctx, t.cfg.Partition, fills, markets, processed); err != nil {
		return err
	}

	if t.metrics != nil {
		t.recordIngestMetrics(fills, markets)
	}
	return nil
}

// recordIngestMetrics updates the fills/markets counters after a
// successful commit, one Add per market so FillsIngestedTotal stays
// labelled by market_name rather than a raw pubkey.
func (t *TransactionScraper) recordIngestMetrics(fills []model.Fill, markets []model.MarketMetadata) {
	byMarket := make(map[string]int, len(fills))
	for _, f := range fills {
		marketName := f.MarketPK
		if m, ok := t.registry.Lookup(f.MarketPK); ok {
			marketName = m.MarketName
		}
		byMarket[marketName]++
	}
	for marketName, count := range byMarket {
		t.metrics.FillsIngestedTotal.WithLabelValues(marketName).Add(float64(count))
	}
	if len(markets) > 0 {
		t.metrics.MarketsDiscoveredTotal.Add(float64(len(markets)))
	}
}

type decodeResult struct {
	signature string
	fills     []model.Fill
	markets   []model.MarketMetadata
	err       error
}

// fetchAndDecode fetches and decodes every signature concurrently, bounded
// by cfg.Fanout in-flight RPC calls at once.
func (t *TransactionScraper) fetchAndDecode(ctx context.Context, sigs []model.Signature) []decodeResult {
	sem := semaphore.NewWeighted(int64(t.cfg.Fanout))
	results := make([]decodeResult, len(sigs))

	var wg sync.WaitGroup
	for i, s := range sigs {
		i, s := i, s
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = decodeResult{signature: s.Signature, err: err}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = t.fetchAndDecodeOne(ctx, s)
		}()
	}
	wg.Wait()

	return results
}

func (t *TransactionScraper) fetchAndDecodeOne(ctx context.Context, sig model.Signature) decodeResult {
	if sig.Err {
		// The transaction itself failed on-chain; nothing to decode, but
		// it's still safe to mark processed.
		return decodeResult{signature: sig.Signature}
	}

	raw, err := t.breaker.Execute(ctx, func() (any, error) {
		return t.rpc.GetTransaction(ctx, sig.Signature)
	})
	if err != nil {
		if t.metrics != nil {
			t.metrics.RPCErrorsTotal.WithLabelValues("getTransaction").Inc()
		}
		return decodeResult{signature: sig.Signature, err: err}
	}
	tx := raw.(*rpcclient.TransactionResult)

	view := toTransactionView(tx)

	fills, err := decoder.ExtractFills(view, t.registry)
	if err != nil {
		return decodeResult{signature: sig.Signature, err: err}
	}
	markets, err := decoder.ExtractNewMarkets(view)
	if err != nil {
		return decodeResult{signature: sig.Signature, err: err}
	}

	return decodeResult{signature: sig.Signature, fills: fills, markets: markets}
}

func toTransactionView(tx *rpcclient.TransactionResult) decoder.TransactionView {
	var inner []decoder.InnerInstruction
	for _, group := range tx.InnerInstructions {
		for _, ix := range group.Instructions {
			inner = append(inner, decoder.InnerInstruction{
				CompiledDataBase58: ix.DataBase58,
				ParsedData:         ix.ParsedData,
				HasParsedData:      ix.HasParsedData,
			})
		}
	}
	return decoder.TransactionView{
		LogMessages:       tx.LogMessages,
		InnerInstructions: inner,
		BlockTime:         tx.BlockTime,
		Slot:              tx.Slot,
	}
}
