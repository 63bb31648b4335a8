package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbook-candles-go/internal/model"
)

// Fills wraps the fills table.
type Fills struct {
	pool *pgxpool.Pool
}

// NewFills constructs a Fills store over pool.
func NewFills(pool *pgxpool.Pool) *Fills {
	return &Fills{pool: pool}
}

const fillsUpsertColumns = `(block_datetime, slot, market_pk, seq_num, maker, maker_client_order_id,
	maker_fee, maker_datetime, taker, taker_client_order_id, taker_fee, taker_side, maker_slot, maker_out,
	price, quantity)`

// insertFills appends parameterized fill rows to batch, ignoring
// conflicts on (market_pk, seq_num) — mirrors
// build_fills_upsert_statement's ON CONFLICT DO NOTHING, but without
// string concatenation.
func insertFills(batch *pgx.Batch, fills []model.Fill) {
	stmt := `INSERT INTO fills ` + fillsUpsertColumns + ` VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (market_pk, seq_num) DO NOTHING`
	for _, f := range fills {
		batch.Queue(stmt,
			f.BlockDatetime, f.Slot, f.MarketPK, f.SeqNum, f.Maker, f.MakerClientOrderID,
			f.MakerFee, f.MakerDatetime, f.Taker, f.TakerClientOrderID, f.TakerFee,
			f.TakerSide, f.MakerSlot, f.MakerOut, f.Price, f.Quantity)
	}
}

// EarliestFillTime returns the block_datetime of the oldest fill recorded
// for marketPK, used by the 1-minute candle batcher to seed its starting
// bucket when no candle exists yet.
func (s *Fills) EarliestFillTime(ctx context.Context, marketPK string) (t0 time.Time, ok bool, err error) {
	const q = `SELECT min(block_datetime) FROM fills WHERE market_pk = $1`
	var t *time.Time
	if err := s.pool.QueryRow(ctx, q, marketPK).Scan(&t); err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("store: earliest fill time: %w", err)
	}
	if t == nil {
		return time.Time{}, false, nil
	}
	return *t, true, nil
}

// FetchFillsFrom returns every fill for marketPK with
// start <= block_datetime < end, ascending by block_datetime — mirrors
// fetch_fills_from.
func (s *Fills) FetchFillsFrom(ctx context.Context, marketPK string, start, end time.Time) ([]model.Fill, error) {
	const q = `SELECT block_datetime, slot, market_pk, seq_num, maker, maker_client_order_id,
		maker_fee, maker_datetime, taker, taker_client_order_id, taker_fee, taker_side, maker_slot, maker_out,
		price, quantity
		FROM fills
		WHERE market_pk = $1 AND block_datetime >= $2 AND block_datetime < $3
		ORDER BY block_datetime ASC`

	rows, err := s.pool.Query(ctx, q, marketPK, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: fetch fills from: %w", err)
	}
	defer rows.Close()

	var out []model.Fill
	for rows.Next() {
		var f model.Fill
		if err := rows.Scan(&f.BlockDatetime, &f.Slot, &f.MarketPK, &f.SeqNum, &f.Maker, &f.MakerClientOrderID,
			&f.MakerFee, &f.MakerDatetime, &f.Taker, &f.TakerClientOrderID, &f.TakerFee,
			&f.TakerSide, &f.MakerSlot, &f.MakerOut, &f.Price, &f.Quantity); err != nil {
			return nil, fmt.Errorf("store: scan fill: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
