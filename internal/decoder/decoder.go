package decoder

import (
	"encoding/base64"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"

	"github.com/openbook-candles-go/internal/model"
)

// MarketLookup answers whether marketPK is a market the registry already
// knows about, and its decimals/lot sizes if so. The decoder only emits
// fills for markets the lookup recognizes; an unrecognized market's fill
// events are silently skipped.
type MarketLookup interface {
	Lookup(marketPK string) (model.MarketMetadata, bool)
}

// ExtractFills walks one transaction's log messages looking for
// "Program data: " lines, Borsh-decodes every one that parses as a
// FillLog, and scales each into a model.Fill using the market's decimals
// and lot sizes from lookup. Log lines that don't decode as a FillLog
// (any other program's event) are skipped, not treated as an error —
// mirrors try_parse_openbook_fills_from_logs in parsing.rs.
func ExtractFills(tx TransactionView, lookup MarketLookup) ([]model.Fill, error) {
	var fills []model.Fill
	blockTime := time.Unix(tx.BlockTime, 0).UTC()

	for _, line := range tx.LogMessages {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
		if err != nil || len(payload) <= fillEventDiscriminator {
			continue
		}

		var log FillLog
		if err := bin.NewBorshDecoder(payload[fillEventDiscriminator:]).Decode(&log); err != nil {
			continue
		}

		market, ok := lookup.Lookup(log.Market.String())
		if !ok {
			continue
		}

		fills = append(fills, scaleFill(log, market, blockTime, tx.Slot))
	}

	return fills, nil
}

// scaleFill converts a wire-format FillLog into its UI-scaled row,
// replicating OpenBookFill::from_log exactly: match_quote is computed in
// native i64 division (quantity / price, truncating) before being
// multiplied by the quote lot size, and fees are derived from that native
// match_quote before any float conversion.
func scaleFill(log FillLog, market model.MarketMetadata, blockTime time.Time, slot uint64) model.Fill {
	var matchQuote int64
	if log.Price != 0 {
		matchQuote = (log.Quantity / log.Price) * market.QuoteLotSize
	}
	makerFeesQuoteLots := matchQuote * log.MakerFee / feesScaleFactor
	takerFeesQuoteLots := matchQuote * log.TakerFee / feesScaleFactor

	return model.Fill{
		BlockDatetime:      blockTime,
		Slot:               slot,
		MarketPK:           log.Market.String(),
		SeqNum:             log.SeqNum,
		Maker:              log.Maker.String(),
		MakerClientOrderID: log.MakerClientOrderID,
		MakerFee:           uiQuoteQuantity(makerFeesQuoteLots, market),
		MakerDatetime:      time.Unix(int64(log.MakerTimestamp), 0).UTC(),
		Taker:              log.Taker.String(),
		TakerClientOrderID: log.TakerClientOrderID,
		TakerFee:           uiQuoteQuantity(takerFeesQuoteLots, market),
		TakerSide:          log.TakerSide,
		MakerSlot:          log.MakerSlot,
		MakerOut:           log.MakerOut,
		Price:              uiPrice(log.Price, market),
		Quantity:           uiBaseQuantity(log.Quantity, market),
	}
}

// uiPrice mirrors ui_price in openbook_v2.rs: the native price cast to
// float, scaled by the quote lot size and base decimals, divided by the
// base lot size and quote decimals.
func uiPrice(nativePrice int64, m model.MarketMetadata) float64 {
	priceLots := float64(nativePrice)
	return (priceLots * float64(m.QuoteLotSize) * m.BaseFactor()) / (float64(m.BaseLotSize) * m.QuoteFactor())
}

// uiBaseQuantity mirrors ui_base_quantity: native base lots cast to float,
// scaled by the base lot size, divided by the base decimals factor.
func uiBaseQuantity(nativeQuantity int64, m model.MarketMetadata) float64 {
	return float64(nativeQuantity) * float64(m.BaseLotSize) / m.BaseFactor()
}

// uiQuoteQuantity mirrors ui_quote_quantity: native quote lots cast to
// float, scaled by the quote lot size, divided by the quote decimals
// factor.
func uiQuoteQuantity(nativeQuantity int64, m model.MarketMetadata) float64 {
	return float64(nativeQuantity) * float64(m.QuoteLotSize) / m.QuoteFactor()
}

// ExtractNewMarkets walks one transaction's inner instructions for a
// CreateMarket event. It mirrors try_parse_new_market: first a cheap
// substring scan of the log messages to skip transactions that couldn't
// possibly contain a CreateMarket event, then a base58 decode of each
// inner instruction's data, skipping the 16-byte discriminator+padding
// prefix before Borsh-decoding a MarketMetaDataLog.
func ExtractNewMarkets(tx TransactionView) ([]model.MarketMetadata, error) {
	if !containsCreateMarketLog(tx.LogMessages) {
		return nil, nil
	}

	var markets []model.MarketMetadata
	createdAt := time.Unix(tx.BlockTime, 0).UTC()

	for _, ix := range tx.InnerInstructions {
		raw, ok := innerInstructionData(ix)
		if !ok {
			continue
		}
		payload, err := base58.Decode(raw)
		if err != nil || len(payload) <= marketEventDiscriminator {
			continue
		}

		var log MarketMetaDataLog
		if err := bin.NewBorshDecoder(payload[marketEventDiscriminator:]).Decode(&log); err != nil {
			continue
		}

		markets = append(markets, model.MarketMetadata{
			CreationDatetime: createdAt,
			ProgramPK:        openBookV2ProgramID,
			MarketPK:         log.Market.String(),
			MarketName:       log.Name,
			BaseMint:         log.BaseMint.String(),
			QuoteMint:        log.QuoteMint.String(),
			BaseDecimals:     log.BaseDecimals,
			QuoteDecimals:    log.QuoteDecimals,
			BaseLotSize:      log.BaseLotSize,
			QuoteLotSize:     log.QuoteLotSize,
			Active:           false,
		})
	}

	return markets, nil
}

func containsCreateMarketLog(logMessages []string) bool {
	for _, line := range logMessages {
		if strings.Contains(line, createMarketMarker) {
			return true
		}
	}
	return false
}

// innerInstructionData returns the instruction's data as the raw base58
// string the RPC serialized it with, whichever of the two encodings (the
// compiled form or the parsed-JSON form) is present.
func innerInstructionData(ix InnerInstruction) (string, bool) {
	if ix.CompiledDataBase58 != "" {
		return ix.CompiledDataBase58, true
	}
	if ix.HasParsedData {
		return ix.ParsedData, true
	}
	return "", false
}
