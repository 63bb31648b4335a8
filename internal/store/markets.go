package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbook-candles-go/internal/model"
)

// Markets wraps the market_metadata table.
type Markets struct {
	pool *pgxpool.Pool
}

// NewMarkets constructs a Markets store over pool.
func NewMarkets(pool *pgxpool.Pool) *Markets {
	return &Markets{pool: pool}
}

// insertMarkets appends parameterized market rows to batch, ignoring
// conflicts on market_pk — mirrors build_markets_insert_statement.
// Newly discovered markets always start inactive; an operator flips
// active once they've reviewed the market.
func insertMarkets(batch *pgx.Batch, markets []model.MarketMetadata) {
	stmt := `INSERT INTO market_metadata
		(creation_datetime, program_pk, market_pk, market_name, base_mint, quote_mint,
		 base_decimals, quote_decimals, base_lot_size, quote_lot_size, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false)
		ON CONFLICT (market_pk) DO NOTHING`
	for _, m := range markets {
		batch.Queue(stmt,
			m.CreationDatetime, m.ProgramPK, m.MarketPK, m.MarketName, m.BaseMint, m.QuoteMint,
			m.BaseDecimals, m.QuoteDecimals, m.BaseLotSize, m.QuoteLotSize)
	}
}

// ListActiveMarkets returns every market with active = true, for the
// registry to load at startup.
func (s *Markets) ListActiveMarkets(ctx context.Context) ([]model.MarketMetadata, error) {
	const q = `SELECT creation_datetime, program_pk, market_pk, market_name, base_mint, quote_mint,
		base_decimals, quote_decimals, base_lot_size, quote_lot_size, active
		FROM market_metadata WHERE active = true`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list active markets: %w", err)
	}
	defer rows.Close()

	var out []model.MarketMetadata
	for rows.Next() {
		var m model.MarketMetadata
		if err := rows.Scan(&m.CreationDatetime, &m.ProgramPK, &m.MarketPK, &m.MarketName,
			&m.BaseMint, &m.QuoteMint, &m.BaseDecimals, &m.QuoteDecimals,
			&m.BaseLotSize, &m.QuoteLotSize, &m.Active); err != nil {
			return nil, fmt.Errorf("store: scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetActive flips a market's active flag, the operator action that lets
// the registry pick it up on the next restart.
func (s *Markets) SetActive(ctx context.Context, marketPK string, active bool) error {
	const stmt = `UPDATE market_metadata SET active = $2 WHERE market_pk = $1`
	if _, err := s.pool.Exec(ctx, stmt, marketPK, active); err != nil {
		return fmt.Errorf("store: set market active: %w", err)
	}
	return nil
}
