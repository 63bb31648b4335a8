package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbook-candles-go/internal/model"
)

// Ingest commits one transaction scraper batch's results atomically:
// fills, then newly discovered markets, then the processed flag for every
// signature that was successfully fetched and decoded — mirrors
// insert_atomically's three-step sequence inside a single db transaction,
// so no signature is ever marked processed without its fills already
// durable.
type Ingest struct {
	pool *pgxpool.Pool
}

// NewIngest constructs an Ingest committer over pool.
func NewIngest(pool *pgxpool.Pool) *Ingest {
	return &Ingest{pool: pool}
}

// Commit runs fills/markets inserts and the processed-signature update in
// one transaction. partition identifies which worker_partition's
// signatures to mark processed.
func (i *Ingest) Commit(ctx context.Context, partition int32, fills []model.Fill, markets []model.MarketMetadata, processedSignatures []string) error {
	if len(processedSignatures) == 0 {
		return nil
	}

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin ingest tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	insertFills(batch, fills)
	insertMarkets(batch, markets)

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for n := 0; n < batch.Len(); n++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("store: ingest batch: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("store: close ingest batch: %w", err)
		}
	}

	const markProcessed = `UPDATE transactions SET processed = true
		WHERE signature = ANY($1) AND worker_partition = $2`
	if _, err := tx.Exec(ctx, markProcessed, processedSignatures, partition); err != nil {
		return fmt.Errorf("store: mark processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit ingest tx: %w", err)
	}
	return nil
}
