package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/metrics"
	"github.com/openbook-candles-go/internal/model"
	"github.com/openbook-candles-go/internal/resilience"
	"github.com/openbook-candles-go/internal/rpcclient"
)

// SignatureSource is the RPC dependency the signature scraper needs.
type SignatureSource interface {
	GetSignaturesForAddress(ctx context.Context, address, before, until string, limit int) ([]rpcclient.ConfirmedSignature, error)
}

// SignatureSink is the store dependency the signature scraper needs.
type SignatureSink interface {
	InsertSignatures(ctx context.Context, sigs []model.Signature) error
	NewestSignature(ctx context.Context) (string, error)
}

// SignatureScraperConfig configures one SignatureScraper instance.
type SignatureScraperConfig struct {
	ProgramAddress string
	NumPartitions  int
	PageSize       int
	PollInterval   time.Duration
	RPCTimeout     time.Duration
}

// SignatureScraper walks the program address's transaction history
// backward in pages, assigns every signature to a partition, and inserts
// it so a transaction scraper can later claim it. It runs as a single
// long-lived task; the scheduler restarts it on error.
type SignatureScraper struct {
	cfg     SignatureScraperConfig
	rpc     SignatureSource
	sink    SignatureSink
	metrics *metrics.Metrics
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// NewSignatureScraper constructs a SignatureScraper. m may be nil in tests.
func NewSignatureScraper(cfg SignatureScraperConfig, rpc SignatureSource, sink SignatureSink, m *metrics.Metrics, logger *zap.Logger) *SignatureScraper {
	return &SignatureScraper{
		cfg:     cfg,
		rpc:     rpc,
		sink:    sink,
		metrics: m,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("signature-scraper"), logger),
		logger:  logger,
	}
}

// Run pages backward from the head of the program's signature history
// until it reaches the newest signature already recorded in the store (or
// the RPC's history ends), then re-runs the same walk on every
// cfg.PollInterval tick so newly confirmed transactions — including more
// than one page's worth arriving within a single interval — are picked up
// without ever re-walking history already stored. It returns only when ctx
// is canceled, it hits a fatal (non-transient) RPC error, or a store call
// fails; transient RPC errors are retried with backoff.
func (s *SignatureScraper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	if err := s.pageUntilCaughtUp(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.pageUntilCaughtUp(ctx); err != nil {
				if !isTransient(err) {
					return err
				}
				s.logger.Warn("signature scraper: transient error, continuing", zap.Error(err))
			}
		}
	}
}

// pageUntilCaughtUp walks backward from the most recent signatures, using
// the store's newest known signature as the RPC's "until" bound, so the
// walk stops exactly where the last run (or the previous tick) left off
// instead of relying solely on ON CONFLICT DO NOTHING to dedup.
func (s *SignatureScraper) pageUntilCaughtUp(ctx context.Context) error {
	until, err := s.sink.NewestSignature(ctx)
	if err != nil {
		return err
	}

	before := ""
	for attempt := 0; ; attempt++ {
		page, err := s.fetchPage(ctx, before, until)
		if err != nil {
			if isTransient(err) {
				time.Sleep(resilience.Backoff(attempt, time.Second, 30*time.Second))
				continue
			}
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := s.store(ctx, page); err != nil {
			return err
		}

		if len(page) < s.cfg.PageSize {
			return nil
		}
		before = page[len(page)-1].Signature
	}
}

func (s *SignatureScraper) fetchPage(ctx context.Context, before, until string) ([]rpcclient.ConfirmedSignature, error) {
	result, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.rpc.GetSignaturesForAddress(ctx, s.cfg.ProgramAddress, before, until, s.cfg.PageSize)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RPCErrorsTotal.WithLabelValues("getSignaturesForAddress").Inc()
		}
		return nil, err
	}
	return result.([]rpcclient.ConfirmedSignature), nil
}

func (s *SignatureScraper) store(ctx context.Context, page []rpcclient.ConfirmedSignature) error {
	rows := make([]model.Signature, 0, len(page))
	for _, sig := range page {
		rows = append(rows, model.Signature{
			Signature: sig.Signature,
			ProgramPK: s.cfg.ProgramAddress,
			BlockTime: time.Unix(sig.BlockTime, 0).UTC(),
			Slot:      sig.Slot,
			Err:       sig.Err,
			Processed: false,
			Partition: Partition(sig.Signature, s.cfg.NumPartitions),
		})
	}
	return s.sink.InsertSignatures(ctx, rows)
}

func isTransient(err error) bool {
	return errors.Is(err, rpcclient.ErrTransient) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}
