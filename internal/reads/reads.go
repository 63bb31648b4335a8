// Package reads is the read-side query boundary an external API would call
// against: top traders by volume and 24h market statistics. It is grounded
// on database/fetch.rs, with one deliberate correction: the original's 24h
// volume query joins a subquery aliased "t2" that is never defined (only
// "t3" exists), so base_size is always the SQL NULL/COALESCE default and
// the query never reflects real base-side volume. Volume24h here computes
// both sides directly from the fills table instead of carrying that bug
// forward, and HighLow24h computes its window from 1-minute candles
// rather than the original's confusing reuse of monthly ("1M") candles
// for a nominally 24-hour query.
package reads

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbook-candles-go/internal/model"
)

// Reads wraps the pool every read query runs against.
type Reads struct {
	pool *pgxpool.Pool
}

// New constructs a Reads over pool.
func New(pool *pgxpool.Pool) *Reads {
	return &Reads{pool: pool}
}

// MarketVolume24h is one market's rolling 24-hour base/quote volume.
type MarketVolume24h struct {
	MarketPK    string
	BaseVolume  float64
	QuoteVolume float64
}

// MarketHighLow24h is one market's rolling 24-hour high/low alongside its
// latest close.
type MarketHighLow24h struct {
	MarketName string
	High       float64
	Low        float64
	Close      float64
}

// TopTradersByBaseVolume returns, for one market and time window, the
// traders (maker or taker side) ranked by summed base quantity traded —
// mirrors fetch_top_traders_by_base_volume_from.
func (r *Reads) TopTradersByBaseVolume(ctx context.Context, marketPK string, start, end time.Time) ([]model.Trader, error) {
	const q = `SELECT trader, SUM(quantity) AS total_quantity
		FROM (
			SELECT maker AS trader, quantity FROM fills
				WHERE market_pk = $1 AND block_datetime >= $2 AND block_datetime < $3
			UNION ALL
			SELECT taker AS trader, quantity FROM fills
				WHERE market_pk = $1 AND block_datetime >= $2 AND block_datetime < $3
		) AS all_trades
		GROUP BY trader
		ORDER BY total_quantity DESC
		LIMIT 1000`
	return r.queryTraders(ctx, q, marketPK, start, end)
}

// TopTradersByQuoteVolume returns the same ranking as
// TopTradersByBaseVolume, but by summed quote notional (price * quantity)
// — mirrors fetch_top_traders_by_quote_volume_from.
func (r *Reads) TopTradersByQuoteVolume(ctx context.Context, marketPK string, start, end time.Time) ([]model.Trader, error) {
	const q = `SELECT trader, SUM(quantity) AS total_quantity
		FROM (
			SELECT maker AS trader, price * quantity AS quantity FROM fills
				WHERE market_pk = $1 AND block_datetime >= $2 AND block_datetime < $3
			UNION ALL
			SELECT taker AS trader, price * quantity AS quantity FROM fills
				WHERE market_pk = $1 AND block_datetime >= $2 AND block_datetime < $3
		) AS all_trades
		GROUP BY trader
		ORDER BY total_quantity DESC
		LIMIT 1000`
	return r.queryTraders(ctx, q, marketPK, start, end)
}

func (r *Reads) queryTraders(ctx context.Context, q, marketPK string, start, end time.Time) ([]model.Trader, error) {
	rows, err := r.pool.Query(ctx, q, marketPK, start, end)
	if err != nil {
		return nil, fmt.Errorf("reads: top traders: %w", err)
	}
	defer rows.Close()

	var out []model.Trader
	for rows.Next() {
		var t model.Trader
		if err := rows.Scan(&t.Trader, &t.TotalQuantity); err != nil {
			return nil, fmt.Errorf("reads: scan trader: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Volume24h returns base and quote volume traded in the last 24 hours for
// each of marketPKs, computed directly from fills.
func (r *Reads) Volume24h(ctx context.Context, marketPKs []string) ([]MarketVolume24h, error) {
	const q = `SELECT m.market_pk,
			COALESCE(SUM(f.quantity), 0) AS base_volume,
			COALESCE(SUM(f.price * f.quantity), 0) AS quote_volume
		FROM unnest($1::text[]) AS m(market_pk)
		LEFT JOIN fills f
			ON f.market_pk = m.market_pk AND f.block_datetime >= now() - interval '1 day'
		GROUP BY m.market_pk`

	rows, err := r.pool.Query(ctx, q, marketPKs)
	if err != nil {
		return nil, fmt.Errorf("reads: volume 24h: %w", err)
	}
	defer rows.Close()

	var out []MarketVolume24h
	for rows.Next() {
		var v MarketVolume24h
		if err := rows.Scan(&v.MarketPK, &v.BaseVolume, &v.QuoteVolume); err != nil {
			return nil, fmt.Errorf("reads: scan volume: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// HighLow24h returns the high, low and latest close over the past 24
// hours for each of marketNames, computed from 1-minute candles.
func (r *Reads) HighLow24h(ctx context.Context, marketNames []string) ([]MarketHighLow24h, error) {
	const q = `SELECT m.market_name,
			COALESCE(MAX(c.high), 0) AS high,
			COALESCE(MIN(c.low), 0) AS low,
			COALESCE(
				(SELECT close FROM candles
					WHERE market_name = m.market_name AND resolution = '1m'
					ORDER BY start_time DESC LIMIT 1), 0) AS close
		FROM unnest($1::text[]) AS m(market_name)
		LEFT JOIN candles c
			ON c.market_name = m.market_name
			AND c.resolution = '1m'
			AND c.start_time >= now() - interval '1 day'
		GROUP BY m.market_name`

	rows, err := r.pool.Query(ctx, q, marketNames)
	if err != nil {
		return nil, fmt.Errorf("reads: high/low 24h: %w", err)
	}
	defer rows.Close()

	var out []MarketHighLow24h
	for rows.Next() {
		var hl MarketHighLow24h
		if err := rows.Scan(&hl.MarketName, &hl.High, &hl.Low, &hl.Close); err != nil {
			return nil, fmt.Errorf("reads: scan high/low: %w", err)
		}
		out = append(out, hl)
	}
	return out, rows.Err()
}
