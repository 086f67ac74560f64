package game

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/MartinGerritsen/mining.game.bot/internal/contracts"
)

// Addresses of one network's game contracts. Market and MultiSend may be zero.
type Addresses struct {
	Token     common.Address
	Items     common.Address
	Staking   common.Address
	Market    common.Address
	MultiSend common.Address
}

// Bindings are the contract handles a Runner works with.
type Bindings struct {
	Token     *contracts.Token
	Items     *contracts.Items
	Staking   *contracts.Staking
	Market    *contracts.Market    // nil without a market
	MultiSend *contracts.MultiSend // nil without a helper
}

func Bind(c contracts.Caller, a Addresses) Bindings {
	b := Bindings{
		Token:   contracts.NewToken(a.Token, c),
		Items:   contracts.NewItems(a.Items, c),
		Staking: contracts.NewStaking(a.Staking, c),
	}
	if a.Market != (common.Address{}) {
		b.Market = contracts.NewMarket(a.Market, c)
	}
	if a.MultiSend != (common.Address{}) {
		b.MultiSend = contracts.NewMultiSend(a.MultiSend)
	}
	return b
}
