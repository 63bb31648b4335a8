package decoder

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/openbook-candles-go/internal/model"
)

func marshalBorsh(t *testing.T, v any) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(v))
	return buf.Bytes()
}

type fakeLookup struct {
	markets map[string]model.MarketMetadata
}

func (f fakeLookup) Lookup(marketPK string) (model.MarketMetadata, bool) {
	m, ok := f.markets[marketPK]
	return m, ok
}

func encodeFillLogLine(t *testing.T, log FillLog) string {
	t.Helper()
	payload := append(make([]byte, fillEventDiscriminator), marshalBorsh(t, log)...)
	return programDataPrefix + base64.StdEncoding.EncodeToString(payload)
}

func TestExtractFills_ScalesPriceAndQuantity(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	maker := solana.NewWallet().PublicKey()
	taker := solana.NewWallet().PublicKey()

	meta := model.MarketMetadata{
		MarketPK:      market.String(),
		BaseDecimals:  6,
		QuoteDecimals: 6,
		BaseLotSize:   100,
		QuoteLotSize:  10,
		Active:        true,
	}

	log := FillLog{
		Market:             market,
		TakerSide:          0,
		MakerSlot:          1,
		MakerOut:           false,
		Timestamp:          1700000000,
		SeqNum:             42,
		Maker:              maker,
		MakerClientOrderID: 1,
		MakerFee:           0,
		MakerTimestamp:     1700000000,
		Taker:              taker,
		TakerClientOrderID: 2,
		TakerFee:           0,
		Price:              5000,
		Quantity:           2,
	}

	tx := TransactionView{
		LogMessages: []string{"Program log: Instruction: PlaceOrder", encodeFillLogLine(t, log)},
		BlockTime:   1700000000,
		Slot:        123,
	}

	fills, err := ExtractFills(tx, fakeLookup{markets: map[string]model.MarketMetadata{meta.MarketPK: meta}})
	require.NoError(t, err)
	require.Len(t, fills, 1)

	got := fills[0]
	require.Equal(t, meta.MarketPK, got.MarketPK)
	require.Equal(t, uint64(42), got.SeqNum)
	require.InDelta(t, 500.0, got.Price, 1e-9)
	require.InDelta(t, 0.0002, got.Quantity, 1e-9)
}

func TestExtractFills_SkipsUnregisteredMarket(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	log := FillLog{Market: market, Price: 1, Quantity: 1}

	tx := TransactionView{
		LogMessages: []string{encodeFillLogLine(t, log)},
		BlockTime:   1700000000,
	}

	fills, err := ExtractFills(tx, fakeLookup{markets: map[string]model.MarketMetadata{}})
	require.NoError(t, err)
	require.Empty(t, fills)
}

func TestExtractFills_SkipsNonFillProgramLogs(t *testing.T) {
	tx := TransactionView{
		LogMessages: []string{"Program data: " + base64.StdEncoding.EncodeToString([]byte("not a fill log"))},
	}
	fills, err := ExtractFills(tx, fakeLookup{markets: map[string]model.MarketMetadata{}})
	require.NoError(t, err)
	require.Empty(t, fills)
}

func TestExtractNewMarkets_DecodesCreateMarketInnerInstruction(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	base := solana.NewWallet().PublicKey()
	quote := solana.NewWallet().PublicKey()

	log := MarketMetaDataLog{
		Market:        market,
		Name:          "SOL-USDC",
		BaseMint:      base,
		QuoteMint:     quote,
		BaseDecimals:  9,
		QuoteDecimals: 6,
		BaseLotSize:   100,
		QuoteLotSize:  10,
	}
	payload := append(make([]byte, marketEventDiscriminator), marshalBorsh(t, log)...)

	tx := TransactionView{
		LogMessages: []string{"Program log: Instruction: CreateMarket"},
		InnerInstructions: []InnerInstruction{
			{CompiledDataBase58: base58.Encode(payload)},
		},
		BlockTime: 1700000000,
	}

	markets, err := ExtractNewMarkets(tx)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, market.String(), markets[0].MarketPK)
	require.Equal(t, "SOL-USDC", markets[0].MarketName)
	require.False(t, markets[0].Active, "a newly discovered market starts inactive until an operator promotes it")
	require.Equal(t, time.Unix(1700000000, 0).UTC(), markets[0].CreationDatetime)
}

func TestExtractNewMarkets_NoMarkerSkipsInnerInstructionWalk(t *testing.T) {
	tx := TransactionView{
		LogMessages:       []string{"Program log: Instruction: PlaceOrder"},
		InnerInstructions: []InnerInstruction{{CompiledDataBase58: "garbage"}},
	}
	markets, err := ExtractNewMarkets(tx)
	require.NoError(t, err)
	require.Empty(t, markets)
}
