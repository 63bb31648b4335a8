// Command worker runs the ingest and candle-batching pipeline: it scrapes
// OpenBook v2 transaction signatures, decodes fills and newly created
// markets out of them, commits them to Postgres, and keeps every OHLCV
// candle resolution up to date. It mirrors the task layout in
// worker/main.rs: one signature scraper, one transaction scraper per
// partition, and one candle-batching task per active market, all
// supervised with restart-on-error and crash-loop detection.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/config"
	"github.com/openbook-candles-go/internal/logging"
	"github.com/openbook-candles-go/internal/metrics"
	"github.com/openbook-candles-go/internal/registry"
	"github.com/openbook-candles-go/internal/rpcclient"
	"github.com/openbook-candles-go/internal/scheduler"
	"github.com/openbook-candles-go/internal/scraper"
	"github.com/openbook-candles-go/internal/store"
)

const openBookV2ProgramID = "opnb2LAfJYbRMAHHvqjCwQxanZn7ReEHp1k81EohpZb"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var crashLoop *scheduler.CrashLoopError
	if errors.As(err, &crashLoop) {
		return 2
	}
	return 1
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	m := metrics.New()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := store.Connect(ctx, store.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	marketsStore := store.NewMarkets(pool)
	txStore := store.NewTransactions(pool)
	fillsStore := store.NewFills(pool)
	candlesStore := store.NewCandles(pool)
	ingestStore := store.NewIngest(pool)

	reg, err := registry.Load(ctx, marketsStore)
	if err != nil {
		return fmt.Errorf("load market registry: %w", err)
	}
	logger.Info("loaded market registry", zap.Int("markets", len(reg.Markets())))

	rpc := rpcclient.New(cfg.RPCURL, cfg.RPCTimeout)

	sigScraper := scraper.NewSignatureScraper(scraper.SignatureScraperConfig{
		ProgramAddress: openBookV2ProgramID,
		NumPartitions:  cfg.NumTransactionPartitions,
		PageSize:       cfg.SignaturePageSize,
		PollInterval:   cfg.SignaturePollInterval,
		RPCTimeout:     cfg.RPCTimeout,
	}, rpc, txStore, m, logging.ForTask(logger, "signature-scraper"))

	sched := scheduler.New(scheduler.Config{
		CrashLoopWindow: cfg.CrashLoopWindow,
		CrashLoopMax:    cfg.CrashLoopMax,
		BackoffBase:     time.Second,
		BackoffMax:      time.Minute,
	}, m, logger)

	tasks := []scheduler.Task{
		{Name: "signature-scraper", Run: sigScraper.Run},
		poolStatsTask(pool, logger),
		scheduler.NewLivenessTask(txStore, rpc, cfg.NumTransactionPartitions, m, cfg.PartitionPollInterval, logger),
	}

	for p := 0; p < cfg.NumTransactionPartitions; p++ {
		txScraper := scraper.NewTransactionScraper(scraper.TransactionScraperConfig{
			Partition:    int32(p),
			ClaimBatch:   cfg.TransactionFetchBatch,
			Fanout:       cfg.TransactionFanout,
			PollInterval: cfg.PartitionPollInterval,
		}, rpc, txStore, ingestStore, reg, m, logging.ForTask(logger, fmt.Sprintf("tx-scraper-%d", p), zap.Int("partition", p)))

		tasks = append(tasks, scheduler.Task{
			Name: fmt.Sprintf("transaction-scraper-%d", p),
			Run:  txScraper.Run,
		})
	}

	candleDeps := candleStoreAdapter{fillsStore, candlesStore}
	for _, market := range reg.Markets() {
		tasks = append(tasks, scheduler.NewCandleBatchTask(market, candleDeps, m, cfg.CandleBatchTick, cfg.CompletionMargin, logger))
	}

	logger.Info("starting worker", zap.Int("tasks", len(tasks)))
	return sched.Run(ctx, tasks)
}

// candleStoreAdapter composes the fills and candles stores into the
// single CandleStore interface the candle batching tasks depend on.
type candleStoreAdapter struct {
	*store.Fills
	*store.Candles
}

func poolStatsTask(pool *pgxpool.Pool, logger *zap.Logger) scheduler.Task {
	return scheduler.Task{
		Name: "pool-stats",
		Run: func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					stat := pool.Stat()
					logger.Info("database pool stats",
						zap.Int32("total_conns", stat.TotalConns()),
						zap.Int32("idle_conns", stat.IdleConns()),
						zap.Int32("acquired_conns", stat.AcquiredConns()))
				}
			}
		},
	}
}
