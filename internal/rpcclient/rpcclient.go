// Package rpcclient is the abstract RPC boundary the signature scraper and
// transaction scrapers call through. It wraps
// github.com/gagliardetto/solana-go's rpc.Client behind a narrow interface
// so the scrapers can be tested against a fake without a live RPC
// endpoint, the same separation marketplace_scanner.go gets for free by
// depending on ethclient's typed Client rather than a raw JSON-RPC caller.
package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrTransient marks an RPC error the caller should retry with backoff
// rather than treat as fatal (rate limits, timeouts, transient 5xx).
var ErrTransient = errors.New("transient rpc error")

// ConfirmedSignature is one entry of a GetSignaturesForAddress page.
type ConfirmedSignature struct {
	Signature string
	Slot      uint64
	BlockTime int64 // unix seconds; 0 if unavailable
	Err       bool
}

// TransactionResult is the subset of a fetched transaction the decoder
// needs.
type TransactionResult struct {
	Signature         string
	Slot              uint64
	BlockTime         int64
	LogMessages       []string
	InnerInstructions []InnerInstructionGroup
}

// InnerInstructionGroup is one instruction index's list of inner
// instructions, mirroring the RPC's innerInstructions[].instructions shape.
type InnerInstructionGroup struct {
	Instructions []InnerInstruction
}

// InnerInstruction carries either a compiled instruction's base58-encoded
// data or a parsed instruction's raw "data" string, whichever the RPC
// returned this transaction with.
type InnerInstruction struct {
	DataBase58    string
	ParsedData    string
	HasParsedData bool
}

// Client is the narrow RPC surface the scrapers depend on.
type Client interface {
	GetSignaturesForAddress(ctx context.Context, address string, before, until string, limit int) ([]ConfirmedSignature, error)
	GetTransaction(ctx context.Context, signature string) (*TransactionResult, error)
	GetSlot(ctx context.Context) (uint64, error)
}

// solanaClient adapts rpc.Client to Client.
type solanaClient struct {
	inner   *rpc.Client
	timeout time.Duration
}

// New dials endpoint and returns a Client with the given per-call timeout.
func New(endpoint string, timeout time.Duration) Client {
	return &solanaClient{inner: rpc.New(endpoint), timeout: timeout}
}

func (c *solanaClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *solanaClient) GetSignaturesForAddress(ctx context.Context, address string, before, until string, limit int) ([]ConfirmedSignature, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: invalid program address: %w", err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{Limit: &limit}
	if before != "" {
		beforeSig, err := solana.SignatureFromBase58(before)
		if err != nil {
			return nil, fmt.Errorf("rpcclient: invalid before signature: %w", err)
		}
		opts.Before = beforeSig
	}
	if until != "" {
		untilSig, err := solana.SignatureFromBase58(until)
		if err != nil {
			return nil, fmt.Errorf("rpcclient: invalid until signature: %w", err)
		}
		opts.Until = untilSig
	}

	page, err := c.inner.GetSignaturesForAddressWithOpts(ctx, pk, opts)
	if err != nil {
		return nil, classify(err)
	}

	out := make([]ConfirmedSignature, 0, len(page))
	for _, s := range page {
		blockTime := int64(0)
		if s.BlockTime != nil {
			blockTime = int64(*s.BlockTime)
		}
		out = append(out, ConfirmedSignature{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			BlockTime: blockTime,
			Err:       s.Err != nil,
		})
	}
	return out, nil
}

func (c *solanaClient) GetTransaction(ctx context.Context, signature string) (*TransactionResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: invalid signature: %w", err)
	}

	maxVersion := uint64(0)
	tx, err := c.inner.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingJSON,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, classify(err)
	}
	if tx == nil || tx.Meta == nil {
		return nil, fmt.Errorf("rpcclient: transaction %s has no metadata", signature)
	}

	blockTime := int64(0)
	if tx.BlockTime != nil {
		blockTime = int64(*tx.BlockTime)
	}

	groups := make([]InnerInstructionGroup, 0, len(tx.Meta.InnerInstructions))
	for _, g := range tx.Meta.InnerInstructions {
		inner := make([]InnerInstruction, 0, len(g.Instructions))
		for _, ix := range g.Instructions {
			inner = append(inner, InnerInstruction{DataBase58: ix.Data.String()})
		}
		groups = append(groups, InnerInstructionGroup{Instructions: inner})
	}

	return &TransactionResult{
		Signature:         signature,
		Slot:              tx.Slot,
		BlockTime:         blockTime,
		LogMessages:       tx.Meta.LogMessages,
		InnerInstructions: groups,
	}, nil
}

// GetSlot returns the current chain head slot, used by the liveness task
// to compute how far behind the signature scraper has fallen.
func (c *solanaClient) GetSlot(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	slot, err := c.inner.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, classify(err)
	}
	return slot, nil
}

// classify wraps err with ErrTransient when it looks retryable (rate
// limiting, context deadline, connection reset); everything else is
// returned as-is so the caller can treat it as fatal for this signature.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "too many requests") {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
