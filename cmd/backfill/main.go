// Command backfill rebuilds a market's full candle history from its
// fills, for the markets named on the command line, mirroring
// backfill-candles/main.rs: it fills in every 1-minute candle first, then
// every higher-order resolution per market, concurrently.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openbook-candles-go/internal/candles"
	"github.com/openbook-candles-go/internal/config"
	"github.com/openbook-candles-go/internal/logging"
	"github.com/openbook-candles-go/internal/model"
	"github.com/openbook-candles-go/internal/registry"
	"github.com/openbook-candles-go/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

func run(marketNames []string) error {
	if len(marketNames) == 0 {
		return fmt.Errorf("usage: backfill MARKET_NAME [MARKET_NAME...]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool, err := store.Connect(ctx, store.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	marketsStore := store.NewMarkets(pool)
	reg, err := registry.Load(ctx, marketsStore)
	if err != nil {
		return fmt.Errorf("load market registry: %w", err)
	}

	var markets []model.MarketMetadata
	for _, name := range marketNames {
		market, ok := reg.LookupByName(name)
		if !ok {
			return fmt.Errorf("unknown market: %s", name)
		}
		markets = append(markets, market)
	}

	fillsStore := store.NewFills(pool)
	candlesStore := store.NewCandles(pool)
	candleDeps := minuteBackfillAdapter{fillsStore, candlesStore}

	now := time.Now().UTC()

	logger.Info("backfilling 1-minute candles", zap.Strings("markets", marketNames))
	for _, market := range markets {
		if err := candles.BackfillMinute(ctx, candleDeps, market, now, cfg.CompletionMargin); err != nil {
			return fmt.Errorf("backfill 1m candles for %s: %w", market.MarketName, err)
		}
	}

	logger.Info("backfilling higher-order candles", zap.Strings("markets", marketNames))
	g, gctx := errgroup.WithContext(ctx)
	for _, market := range markets {
		market := market
		g.Go(func() error {
			return candles.BackfillHigherOrder(gctx, candleDeps, market.MarketName, now)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("backfill higher-order candles: %w", err)
	}

	logger.Info("backfill complete", zap.Strings("markets", marketNames))
	return nil
}

// minuteBackfillAdapter composes the fills and candles stores into both
// the 1-minute and higher-order backfill dependencies.
type minuteBackfillAdapter struct {
	*store.Fills
	*store.Candles
}
