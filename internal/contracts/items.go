package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var (
	ERC1155BalanceOf         = register("balanceOf", w3.MustNewFunc("balanceOf(address,uint256)", "uint256"))
	ERC1155IsApprovedForAll  = register("isApprovedForAll", w3.MustNewFunc("isApprovedForAll(address,address)", "bool"))
	ERC1155SetApprovalForAll = register("setApprovalForAll", w3.MustNewFunc("setApprovalForAll(address,bool)", ""))
)

// Items is the ERC-1155 collection holding the game's catalog items.
type Items struct {
	Address common.Address
	caller  Caller
}

func NewItems(addr common.Address, c Caller) *Items { return &Items{Address: addr, caller: c} }

func (it *Items) BalanceOf(ctx context.Context, owner common.Address, id uint64) (*big.Int, error) {
	bal := new(big.Int)
	if err := callFunc(ctx, it.caller, it.Address, ERC1155BalanceOf, []any{owner, new(big.Int).SetUint64(id)}, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func (it *Items) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	var ok bool
	if err := callFunc(ctx, it.caller, it.Address, ERC1155IsApprovedForAll, []any{owner, operator}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (it *Items) SetApprovalForAll(operator common.Address, approved bool) (Call, error) {
	return newCall(it.Address, ERC1155SetApprovalForAll, "setApprovalForAll", operator, approved)
}
