package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var MultiSendToken = register("multisendToken", w3.MustNewFunc("multisendToken(address,address[],uint256[])", ""))

// MultiSend is a batch token sender. The caller approves it for the sum first.
type MultiSend struct {
	Address common.Address
}

func NewMultiSend(addr common.Address) *MultiSend { return &MultiSend{Address: addr} }

func (m *MultiSend) SendToken(token common.Address, to []common.Address, amounts []*big.Int) (Call, error) {
	if len(to) != len(amounts) {
		return Call{}, fmt.Errorf("multisendToken: %d recipients, %d amounts", len(to), len(amounts))
	}
	return newCall(m.Address, MultiSendToken, "multisendToken", token, to, amounts)
}
