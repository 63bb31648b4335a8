// Package decoder implements the log decoder: a pure function over one
// transaction's log messages and inner instructions that yields zero or
// more fills and/or newly discovered markets. It mirrors
// original_source/src/scraper/parsing.rs, replacing Rust's
// anchor_lang::AnchorDeserialize with github.com/gagliardetto/binary's
// Borsh decoder and Rust's bs58 crate with github.com/mr-tron/base58 — the
// same base58 decode path uhyunpark-hyperlicked (a complete pack repo)
// depends on directly.
package decoder

import "github.com/gagliardetto/solana-go"

// programDataPrefix is the literal log prefix an Anchor event log line
// carries.
const programDataPrefix = "Program data: "

// fillEventDiscriminator is the byte width of the Anchor event
// discriminator prefixed to every base64-decoded "Program data: " payload.
const fillEventDiscriminator = 8

// marketEventDiscriminator is the byte width of the discriminator+padding
// prefixed to every base58-decoded CreateMarket inner-instruction payload.
const marketEventDiscriminator = 16

// createMarketMarker is the substring the source scans log messages for to
// decide whether a transaction's inner instructions are worth walking.
const createMarketMarker = "CreateMarket"

// openBookV2ProgramID is the OpenBook v2 program address every discovered
// market and fill is attributed to.
const openBookV2ProgramID = "opnb2LAfJYbRMAHHvqjCwQxanZn7ReEHp1k81EohpZb"

// feesScaleFactor scales native maker/taker fees into UI units.
const feesScaleFactor = 1_000_000

// FillLog is the wire shape of an OpenBook v2 fill event, Borsh-encoded
// after an 8-byte Anchor discriminator. Field order is contractual: it
// must match the on-chain event struct exactly, per
// original_source/src/structs/openbook_v2.rs::FillLog.
type FillLog struct {
	Market             solana.PublicKey
	TakerSide          uint8
	MakerSlot          uint8
	MakerOut           bool
	Timestamp          uint64
	SeqNum             uint64
	Maker              solana.PublicKey
	MakerClientOrderID uint64
	MakerFee           int64
	MakerTimestamp     uint64
	Taker              solana.PublicKey
	TakerClientOrderID uint64
	TakerFee           int64
	Price              int64
	Quantity           int64
}

// MarketMetaDataLog is the wire shape of a CreateMarket event, Borsh-encoded
// after a 16-byte discriminator+padding prefix, per
// original_source/src/structs/openbook_v2.rs::MarketMetaDataLog.
type MarketMetaDataLog struct {
	Market        solana.PublicKey
	Name          string
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8
	BaseLotSize   int64
	QuoteLotSize  int64
}

// InnerInstruction is the minimal shape the decoder needs from one inner
// instruction: either compiled instruction bytes (base58-encoded, as the
// RPC returns them) or a parsed JSON instruction exposing its "data" field
// as a raw string.
type InnerInstruction struct {
	// CompiledDataBase58 is set for a "Compiled" inner instruction: its
	// instruction data, base58-encoded, exactly as the RPC returns it.
	CompiledDataBase58 string
	// ParsedData is set for a "Parsed" inner instruction whose parsed JSON
	// object carries a "data" key. Only string values are honored.
	ParsedData string
	// HasParsedData distinguishes "no data key present" from an empty
	// string value for ParsedData.
	HasParsedData bool
}

// TransactionView is the input to the log decoder: one transaction's
// decoded metadata.
type TransactionView struct {
	LogMessages       []string
	InnerInstructions []InnerInstruction
	BlockTime         int64 // unix seconds
	Slot              uint64
}
