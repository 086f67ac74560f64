package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var (
	ERC20BalanceOf = register("balanceOf", w3.MustNewFunc("balanceOf(address)", "uint256"))
	ERC20Approve   = register("approve", w3.MustNewFunc("approve(address,uint256)", "bool"))
	ERC20Transfer  = register("transfer", w3.MustNewFunc("transfer(address,uint256)", "bool"))
)

// Token is the ERC-20 reward token.
type Token struct {
	Address common.Address
	caller  Caller
}

func NewToken(addr common.Address, c Caller) *Token { return &Token{Address: addr, caller: c} }

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	bal := new(big.Int)
	if err := callFunc(ctx, t.caller, t.Address, ERC20BalanceOf, []any{owner}, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func (t *Token) Approve(spender common.Address, amount *big.Int) (Call, error) {
	return newCall(t.Address, ERC20Approve, "approve", spender, amount)
}

func (t *Token) Transfer(to common.Address, amount *big.Int) (Call, error) {
	return newCall(t.Address, ERC20Transfer, "transfer", to, amount)
}
