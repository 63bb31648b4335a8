// Package scraper runs the two long-lived tasks that keep the
// transactions table populated and drained: the signature scraper walks
// the program's transaction history and records every signature it sees;
// each transaction scraper partition then claims its share of those
// signatures, fetches and decodes them, and commits fills/markets
// atomically. Both tasks follow the same polling-loop shape as
// internal/chain/marketplace_scanner.go's Run method.
package scraper

import "hash/fnv"

// Partition deterministically assigns signature to one of n partitions.
// FNV-1a is used rather than a third-party hash: for a fixed 3-way split
// of opaque signature strings there's no meaningful advantage to a faster
// or higher-quality hash, and hash/fnv needs no extra dependency for a
// one-line computation.
func Partition(signature string, n int) int32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(signature))
	return int32(h.Sum64() % uint64(n))
}
