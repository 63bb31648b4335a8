// Package model holds the row and value types shared across the ingest and
// candle-batching pipeline: signatures, market metadata, fills and candles.
package model

import "time"

// Signature mirrors a row in the transactions table. It tracks one
// transaction signature discovered by the Signature Scraper and consumed
// by a Transaction Scraper partition.
type Signature struct {
	Signature   string
	ProgramPK   string
	BlockTime   time.Time
	Slot        uint64
	Err         bool
	Processed   bool
	Partition   int32
}

// MarketMetadata mirrors a row in market_metadata. Decimals and lot sizes
// are immutable once a market is first observed; only Active is mutable.
type MarketMetadata struct {
	CreationDatetime time.Time
	ProgramPK        string
	MarketPK         string
	MarketName       string
	BaseMint         string
	QuoteMint        string
	BaseDecimals     uint8
	QuoteDecimals    uint8
	BaseLotSize      int64
	QuoteLotSize     int64
	Active           bool
}

// BaseFactor returns 10^BaseDecimals.
func (m MarketMetadata) BaseFactor() float64 {
	return tokenFactor(m.BaseDecimals)
}

// QuoteFactor returns 10^QuoteDecimals.
func (m MarketMetadata) QuoteFactor() float64 {
	return tokenFactor(m.QuoteDecimals)
}

func tokenFactor(decimals uint8) float64 {
	factor := 1.0
	for i := uint8(0); i < decimals; i++ {
		factor *= 10
	}
	return factor
}

// Fill mirrors a row in the fills table, UI-scaled from native on-chain units.
type Fill struct {
	BlockDatetime      time.Time
	Slot               uint64
	MarketPK           string
	SeqNum             uint64
	Maker              string
	MakerClientOrderID uint64
	MakerFee           float64
	MakerDatetime      time.Time
	Taker              string
	TakerClientOrderID uint64
	TakerFee           float64
	TakerSide          uint8
	MakerSlot          uint8
	MakerOut           bool
	Price              float64
	Quantity           float64
}

// Resolution is a candle bucket width.
type Resolution string

const (
	Resolution1m  Resolution = "1m"
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution1h  Resolution = "1h"
	Resolution4h  Resolution = "4h"
	Resolution1d  Resolution = "1d"
	Resolution1w  Resolution = "1w"
	Resolution1M  Resolution = "1M"
)

// Resolutions lists every resolution in ascending duration order. Index 0
// is the base resolution; every other resolution's constituent is the one
// immediately before it.
var Resolutions = []Resolution{
	Resolution1m, Resolution5m, Resolution15m, Resolution1h,
	Resolution4h, Resolution1d, Resolution1w, Resolution1M,
}

// HigherOrderResolutions is Resolutions without the base resolution; these
// are the resolutions the Higher-Order Candle Batcher builds.
var HigherOrderResolutions = Resolutions[1:]

// Duration returns the bucket width for the resolution. 1M (month) is
// defined as exactly 30 days for aggregation purposes.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Resolution1m:
		return time.Minute
	case Resolution5m:
		return 5 * time.Minute
	case Resolution15m:
		return 15 * time.Minute
	case Resolution1h:
		return time.Hour
	case Resolution4h:
		return 4 * time.Hour
	case Resolution1d:
		return 24 * time.Hour
	case Resolution1w:
		return 7 * 24 * time.Hour
	case Resolution1M:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Constituent returns the next-smaller resolution used to build r, and
// whether r has one (false for the base resolution).
func (r Resolution) Constituent() (Resolution, bool) {
	for i, res := range Resolutions {
		if res == r {
			if i == 0 {
				return "", false
			}
			return Resolutions[i-1], true
		}
	}
	return "", false
}

// Candle mirrors a row in the candles table, keyed by (market_name,
// resolution, start_time).
type Candle struct {
	MarketName string
	Resolution Resolution
	StartTime  time.Time
	EndTime    time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Complete   bool
}

// EmptyCandle returns a zero-volume candle for marketName/resolution with
// every OHLC field left at zero; callers seed Open/High/Low/Close from the
// carried-over last price before use.
func EmptyCandle(marketName string, resolution Resolution) Candle {
	return Candle{MarketName: marketName, Resolution: resolution}
}

// Trader is one row of an aggregated top-trader-by-volume query.
type Trader struct {
	Trader        string
	TotalQuantity float64
}
