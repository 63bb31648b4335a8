package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbook-candles-go/internal/model"
)

// Candles wraps the candles table.
type Candles struct {
	pool *pgxpool.Pool
}

// NewCandles constructs a Candles store over pool.
func NewCandles(pool *pgxpool.Pool) *Candles {
	return &Candles{pool: pool}
}

// Upsert writes candles, updating every OHLCV field and the complete flag
// on conflict — mirrors build_candles_upsert_statement's
// ON CONFLICT (market_name, start_time, resolution) DO UPDATE, but
// parameterized per row via a batch instead of one giant string.
func (c *Candles) Upsert(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	const stmt = `INSERT INTO candles
		(market_name, start_time, end_time, resolution, open, close, high, low, volume, complete)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (market_name, start_time, resolution) DO UPDATE SET
			open = excluded.open,
			close = excluded.close,
			high = excluded.high,
			low = excluded.low,
			volume = excluded.volume,
			complete = excluded.complete`

	batch := &pgx.Batch{}
	for _, cd := range candles {
		batch.Queue(stmt, cd.MarketName, cd.StartTime, cd.EndTime, cd.Resolution,
			cd.Open, cd.Close, cd.High, cd.Low, cd.Volume, cd.Complete)
	}

	br := c.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range candles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store: upsert candles: %w", err)
		}
	}
	return nil
}

// LatestCompleteCandle returns the most recent completed candle for
// marketName/resolution, used by the batchers to resume incrementally.
func (c *Candles) LatestCompleteCandle(ctx context.Context, marketName string, resolution model.Resolution) (model.Candle, bool, error) {
	const q = `SELECT market_name, start_time, end_time, resolution, open, close, high, low, volume, complete
		FROM candles
		WHERE market_name = $1 AND resolution = $2 AND complete = true
		ORDER BY start_time DESC
		LIMIT 1`

	var cd model.Candle
	err := c.pool.QueryRow(ctx, q, marketName, resolution).Scan(
		&cd.MarketName, &cd.StartTime, &cd.EndTime, &cd.Resolution,
		&cd.Open, &cd.Close, &cd.High, &cd.Low, &cd.Volume, &cd.Complete)
	if err == pgx.ErrNoRows {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, fmt.Errorf("store: latest complete candle: %w", err)
	}
	return cd, true, nil
}

// ListRange returns every candle for marketName/resolution with
// start_time >= start and end_time <= end, ascending — mirrors
// fetch_candles_from.
func (c *Candles) ListRange(ctx context.Context, marketName string, resolution model.Resolution, start, end time.Time) ([]model.Candle, error) {
	const q = `SELECT market_name, start_time, end_time, resolution, open, close, high, low, volume, complete
		FROM candles
		WHERE market_name = $1 AND resolution = $2 AND start_time >= $3 AND end_time <= $4
		ORDER BY start_time ASC`

	rows, err := c.pool.Query(ctx, q, marketName, resolution, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: list candles range: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var cd model.Candle
		if err := rows.Scan(&cd.MarketName, &cd.StartTime, &cd.EndTime, &cd.Resolution,
			&cd.Open, &cd.Close, &cd.High, &cd.Low, &cd.Volume, &cd.Complete); err != nil {
			return nil, fmt.Errorf("store: scan candle: %w", err)
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

// EarliestCandles returns the oldest limit candles for marketName/resolution,
// ascending by start_time, used when bootstrapping a higher-order batcher
// that needs to trim pre-history buckets.
func (c *Candles) EarliestCandles(ctx context.Context, marketName string, resolution model.Resolution, limit int) ([]model.Candle, error) {
	const q = `SELECT market_name, start_time, end_time, resolution, open, close, high, low, volume, complete
		FROM candles
		WHERE market_name = $1 AND resolution = $2
		ORDER BY start_time ASC
		LIMIT $3`

	rows, err := c.pool.Query(ctx, q, marketName, resolution, limit)
	if err != nil {
		return nil, fmt.Errorf("store: earliest candles: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var cd model.Candle
		if err := rows.Scan(&cd.MarketName, &cd.StartTime, &cd.EndTime, &cd.Resolution,
			&cd.Open, &cd.Close, &cd.High, &cd.Low, &cd.Volume, &cd.Complete); err != nil {
			return nil, fmt.Errorf("store: scan candle: %w", err)
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}
