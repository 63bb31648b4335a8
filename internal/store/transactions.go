package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbook-candles-go/internal/model"
)

// Transactions wraps the transactions table: one row per signature
// discovered by the signature scraper.
type Transactions struct {
	pool *pgxpool.Pool
}

// NewTransactions constructs a Transactions store over pool.
func NewTransactions(pool *pgxpool.Pool) *Transactions {
	return &Transactions{pool: pool}
}

// InsertSignatures upserts a batch of newly discovered signatures,
// ignoring conflicts on the primary key — mirrors
// build_transactions_insert_statement, but parameterized instead of
// string-built.
func (t *Transactions) InsertSignatures(ctx context.Context, sigs []model.Signature) error {
	if len(sigs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const stmt = `INSERT INTO transactions
		(signature, program_pk, block_datetime, slot, err, processed, worker_partition)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`
	for _, s := range sigs {
		batch.Queue(stmt, s.Signature, s.ProgramPK, s.BlockTime, s.Slot, s.Err, s.Processed, s.Partition)
	}

	br := t.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range sigs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store: insert signatures: %w", err)
		}
	}
	return nil
}

// ClaimUnprocessed returns up to limit unprocessed, non-error signatures
// belonging to partition, oldest first, for a transaction scraper to
// fetch.
func (t *Transactions) ClaimUnprocessed(ctx context.Context, partition int32, limit int) ([]model.Signature, error) {
	const q = `SELECT signature, program_pk, block_datetime, slot, err, processed, worker_partition
		FROM transactions
		WHERE worker_partition = $1 AND processed = false AND err = false
		ORDER BY block_datetime ASC
		LIMIT $2`

	rows, err := t.pool.Query(ctx, q, partition, limit)
	if err != nil {
		return nil, fmt.Errorf("store: claim unprocessed: %w", err)
	}
	defer rows.Close()

	var out []model.Signature
	for rows.Next() {
		var s model.Signature
		if err := rows.Scan(&s.Signature, &s.ProgramPK, &s.BlockTime, &s.Slot, &s.Err, &s.Processed, &s.Partition); err != nil {
			return nil, fmt.Errorf("store: scan signature: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// NewestSignature returns the signature with the greatest slot across
// every partition, used by the signature scraper as the "until" bound for
// backward paging so a restart never re-walks history it already stored.
// The empty string means the table has no rows yet.
func (t *Transactions) NewestSignature(ctx context.Context) (string, error) {
	const q = `SELECT signature FROM transactions ORDER BY slot DESC LIMIT 1`

	var sig string
	err := t.pool.QueryRow(ctx, q).Scan(&sig)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: newest signature: %w", err)
	}
	return sig, nil
}

// NewestSlot returns the greatest slot recorded across every partition, for
// the liveness task's scraper-lag gauge. ok is false if the table is empty.
func (t *Transactions) NewestSlot(ctx context.Context) (slot uint64, ok bool, err error) {
	const q = `SELECT max(slot) FROM transactions`

	var maxSlot *int64
	if err := t.pool.QueryRow(ctx, q).Scan(&maxSlot); err != nil {
		return 0, false, fmt.Errorf("store: newest slot: %w", err)
	}
	if maxSlot == nil {
		return 0, false, nil
	}
	return uint64(*maxSlot), true, nil
}

// UnprocessedStats reports how many unprocessed, non-error signatures
// remain in partition and the age of the oldest one, for the liveness
// task's UnprocessedSignatures/UnprocessedSignatureAge gauges. ok is false
// when partition currently has no unprocessed rows.
func (t *Transactions) UnprocessedStats(ctx context.Context, partition int32) (count int, oldest time.Time, ok bool, err error) {
	const q = `SELECT count(*), min(block_datetime) FROM transactions
		WHERE worker_partition = $1 AND processed = false AND err = false`

	var oldestNull *time.Time
	if err := t.pool.QueryRow(ctx, q, partition).Scan(&count, &oldestNull); err != nil {
		return 0, time.Time{}, false, fmt.Errorf("store: unprocessed stats: %w", err)
	}
	if oldestNull == nil {
		return count, time.Time{}, false, nil
	}
	return count, *oldestNull, true, nil
}
