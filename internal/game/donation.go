package game

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/MartinGerritsen/mining.game.bot/internal/contracts"
	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

// DonationStrategy turns a donation into the calls that move it.
type DonationStrategy interface {
	Name() string
	Calls(b Bindings, to common.Address, amount *big.Int) ([]contracts.Call, error)
}

// TransferDonation is a plain token transfer.
type TransferDonation struct{}

func (TransferDonation) Name() string { return "transfer" }

func (TransferDonation) Calls(b Bindings, to common.Address, amount *big.Int) ([]contracts.Call, error) {
	call, err := b.Token.Transfer(to, amount)
	if err != nil {
		return nil, err
	}
	return []contracts.Call{call}, nil
}

// MultiSendDonation routes the donation through the multi-send helper:
// approve the helper, then multisendToken with a single recipient.
type MultiSendDonation struct{}

func (MultiSendDonation) Name() string { return "multisend" }

func (MultiSendDonation) Calls(b Bindings, to common.Address, amount *big.Int) ([]contracts.Call, error) {
	if b.MultiSend == nil {
		return nil, errors.New("multisend strategy without a multisend address")
	}
	approve, err := b.Token.Approve(b.MultiSend.Address, amount)
	if err != nil {
		return nil, err
	}
	send, err := b.MultiSend.SendToken(b.Token.Address, []common.Address{to}, []*big.Int{amount})
	if err != nil {
		return nil, err
	}
	return []contracts.Call{approve, send}, nil
}

// DonationStrategyByName maps a config value to a strategy.
func DonationStrategyByName(name string) (DonationStrategy, error) {
	switch name {
	case "", "transfer":
		return TransferDonation{}, nil
	case "multisend":
		return MultiSendDonation{}, nil
	}
	return nil, fmt.Errorf("unknown donation strategy %q", name)
}

// ParseDonationAmount reads a typed amount of whole tokens.
func ParseDonationAmount(s string) (decimal.Decimal, error) {
	d, err := units.Parse(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
