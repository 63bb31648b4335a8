package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/decoder"
	"github.com/openbook-candles-go/internal/metrics"
	"github.com/openbook-candles-go/internal/model"
	"github.com/openbook-candles-go/internal/registry"
	"github.com/openbook-candles-go/internal/rpcclient"
)

type fakeTransactionSource struct {
	byLog map[string]*rpcclient.TransactionResult
	fail  map[string]error
}

func (f *fakeTransactionSource) GetTransaction(ctx context.Context, signature string) (*rpcclient.TransactionResult, error) {
	if err, ok := f.fail[signature]; ok {
		return nil, err
	}
	return f.byLog[signature], nil
}

type fakeClaimant struct {
	sigs []model.Signature
}

func (f *fakeClaimant) ClaimUnprocessed(ctx context.Context, partition int32, limit int) ([]model.Signature, error) {
	out := f.sigs
	f.sigs = nil
	return out, nil
}

type fakeCommitter struct {
	partition int32
	fills     []model.Fill
	markets   []model.MarketMetadata
	processed []string
	calls     int
}

func (f *fakeCommitter) Commit(ctx context.Context, partition int32, fills []model.Fill, markets []model.MarketMetadata, processedSignatures []string) error {
	f.calls++
	f.partition = partition
	f.fills = fills
	f.markets = markets
	f.processed = processedSignatures
	return nil
}

type fakeMarketStore struct {
	markets []model.MarketMetadata
}

func (f *fakeMarketStore) ListActiveMarkets(ctx context.Context) ([]model.MarketMetadata, error) {
	return f.markets, nil
}

func testTransactionScraperConfig() TransactionScraperConfig {
	return TransactionScraperConfig{
		Partition:    1,
		ClaimBatch:   10,
		Fanout:       4,
		PollInterval: time.Millisecond,
	}
}

// fillLogLine encodes log as a "Program data: " line: an 8-byte
// discriminator followed by the Borsh-encoded FillLog.
func fillLogLine(t *testing.T, log decoder.FillLog) string {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(log))
	payload := append(make([]byte, 8), buf.Bytes()...)
	return "Program data: " + base64.StdEncoding.EncodeToString(payload)
}

func TestDrainOnce_CommitsBatchAndMarksProcessed(t *testing.T) {
	market := model.MarketMetadata{MarketPK: "marketPK1", MarketName: "SOL-USDC", BaseLotSize: 1, QuoteLotSize: 1}
	reg, err := registry.Load(context.Background(), &fakeMarketStore{markets: []model.MarketMetadata{market}})
	require.NoError(t, err)

	claimant := &fakeClaimant{sigs: []model.Signature{
		{Signature: "sig1", Err: false},
		{Signature: "sig2", Err: true}, // on-chain failure, no decode needed
	}}
	rpc := &fakeTransactionSource{
		byLog: map[string]*rpcclient.TransactionResult{
			"sig1": {Signature: "sig1", LogMessages: nil},
		},
	}
	committer := &fakeCommitter{}

	ts := NewTransactionScraper(testTransactionScraperConfig(), rpc, claimant, committer, reg, nil, zap.NewNop())
	require.NoError(t, ts.drainOnce(context.Background()))

	require.Equal(t, 1, committer.calls)
	require.ElementsMatch(t, []string{"sig1", "sig2"}, committer.processed)
	require.Equal(t, int32(1), committer.partition)
}

func TestDrainOnce_SkipsFailedFetchWithoutMarkingProcessed(t *testing.T) {
	reg, err := registry.Load(context.Background(), &fakeMarketStore{})
	require.NoError(t, err)

	claimant := &fakeClaimant{sigs: []model.Signature{{Signature: "sig1"}}}
	rpc := &fakeTransactionSource{fail: map[string]error{"sig1": errors.New("rpc down")}}
	committer := &fakeCommitter{}

	ts := NewTransactionScraper(testTransactionScraperConfig(), rpc, claimant, committer, reg, nil, zap.NewNop())
	require.NoError(t, ts.drainOnce(context.Background()))

	require.Equal(t, 1, committer.calls)
	require.Empty(t, committer.processed)
}

func TestDrainOnce_RecordsIngestMetrics(t *testing.T) {
	marketPK := solana.NewWallet().PublicKey()
	market := model.MarketMetadata{MarketPK: marketPK.String(), MarketName: "SOL-USDC", BaseLotSize: 1, QuoteLotSize: 1}
	reg, err := registry.Load(context.Background(), &fakeMarketStore{markets: []model.MarketMetadata{market}})
	require.NoError(t, err)

	claimant := &fakeClaimant{sigs: []model.Signature{{Signature: "sig1"}}}
	rpc := &fakeTransactionSource{byLog: map[string]*rpcclient.TransactionResult{
		"sig1": {Signature: "sig1", LogMessages: []string{
			fillLogLine(t, decoder.FillLog{Market: marketPK, SeqNum: 1, Price: 1, Quantity: 1}),
			fillLogLine(t, decoder.FillLog{Market: marketPK, SeqNum: 2, Price: 1, Quantity: 1}),
		}},
	}}
	committer := &fakeCommitter{}

	m := metrics.New()
	ts := NewTransactionScraper(testTransactionScraperConfig(), rpc, claimant, committer, reg, m, zap.NewNop())
	require.NoError(t, ts.drainOnce(context.Background()))

	require.Equal(t, float64(2), testutil.ToFloat64(m.FillsIngestedTotal.WithLabelValues("SOL-USDC")))
}

func TestFetchAndDecodeOne_RecordsRPCErrorMetric(t *testing.T) {
	reg, err := registry.Load(context.Background(), &fakeMarketStore{})
	require.NoError(t, err)

	rpc := &fakeTransactionSource{fail: map[string]error{"sig1": errors.New("rpc down")}}
	m := metrics.New()
	ts := NewTransactionScraper(testTransactionScraperConfig(), rpc, &fakeClaimant{}, &fakeCommitter{}, reg, m, zap.NewNop())

	ts.fetchAndDecodeOne(context.Background(), model.Signature{Signature: "sig1"})

	require.Equal(t, float64(1), testutil.ToFloat64(m.RPCErrorsTotal.WithLabelValues("getTransaction")))
}

func TestDrainOnce_NoSignaturesIsNoop(t *testing.T) {
	reg, err := registry.Load(context.Background(), &fakeMarketStore{})
	require.NoError(t, err)

	claimant := &fakeClaimant{}
	committer := &fakeCommitter{}
	ts := NewTransactionScraper(testTransactionScraperConfig(), &fakeTransactionSource{}, claimant, committer, reg, nil, zap.NewNop())

	require.NoError(t, ts.drainOnce(context.Background()))
	require.Equal(t, 0, committer.calls)
}
