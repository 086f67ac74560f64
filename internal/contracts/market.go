package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

const marketABIJSON = `[
  {"type":"function","name":"listings","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[
     {"name":"listingId","type":"uint256"},
     {"name":"tokenOwner","type":"address"},
     {"name":"assetContract","type":"address"},
     {"name":"tokenId","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"endTime","type":"uint256"},
     {"name":"quantity","type":"uint256"},
     {"name":"currency","type":"address"},
     {"name":"reservePricePerToken","type":"uint256"},
     {"name":"buyoutPricePerToken","type":"uint256"},
     {"name":"tokenType","type":"uint8"},
     {"name":"listingType","type":"uint8"}]}
]`

var MarketABI = mustParseABI(marketABIJSON)

var MarketBuy = register("buy", w3.MustNewFunc("buy(uint256,address,uint256,address,uint256)", ""))

func init() {
	methodNames[[4]byte(MarketABI.Methods["listings"].ID)] = "listings"
}

// Listing is one market slot. A slot with StartTime zero is empty.
type Listing struct {
	ListingID            *big.Int       `abi:"listingId"`
	TokenOwner           common.Address `abi:"tokenOwner"`
	AssetContract        common.Address `abi:"assetContract"`
	TokenID              *big.Int       `abi:"tokenId"`
	StartTime            *big.Int       `abi:"startTime"`
	EndTime              *big.Int       `abi:"endTime"`
	Quantity             *big.Int       `abi:"quantity"`
	Currency             common.Address `abi:"currency"`
	ReservePricePerToken *big.Int       `abi:"reservePricePerToken"`
	BuyoutPricePerToken  *big.Int       `abi:"buyoutPricePerToken"`
	TokenType            uint8          `abi:"tokenType"`
	ListingType          uint8          `abi:"listingType"`
}

func (l Listing) Empty() bool { return l.StartTime == nil || l.StartTime.Sign() == 0 }

// EncodeListing ABI-encodes l the way listings(uint256) returns it.
func EncodeListing(l Listing) ([]byte, error) {
	return MarketABI.Methods["listings"].Outputs.Pack(
		l.ListingID, l.TokenOwner, l.AssetContract, l.TokenID, l.StartTime, l.EndTime,
		l.Quantity, l.Currency, l.ReservePricePerToken, l.BuyoutPricePerToken, l.TokenType, l.ListingType)
}

// Market is the item marketplace.
type Market struct {
	Address common.Address
	caller  Caller
}

func NewMarket(addr common.Address, c Caller) *Market { return &Market{Address: addr, caller: c} }

// Listing reads slot index. Past the last slot the contract reverts.
func (m *Market) Listing(ctx context.Context, index uint64) (Listing, error) {
	input, err := MarketABI.Pack("listings", new(big.Int).SetUint64(index))
	if err != nil {
		return Listing{}, fmt.Errorf("encode listings: %w", err)
	}
	out, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &m.Address, Data: input})
	if err != nil {
		return Listing{}, err
	}
	var l Listing
	if err := MarketABI.UnpackIntoInterface(&l, "listings", out); err != nil {
		return Listing{}, fmt.Errorf("decode listings(%d): %w", index, err)
	}
	return l, nil
}

func (m *Market) Buy(listingID *big.Int, buyFor common.Address, qty *big.Int, currency common.Address, total *big.Int) (Call, error) {
	return newCall(m.Address, MarketBuy, "buy", listingID, buyFor, qty, currency, total)
}
