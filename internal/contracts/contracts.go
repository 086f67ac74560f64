// Package contracts encodes calls to the game's contracts: the ERC-20 reward
// token, the ERC-1155 item collection, the staking contract, the market and
// the multi-send helper.
package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

// Caller runs read-only calls against the latest block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Call is an encoded state-changing call, ready for the transaction pipeline.
type Call struct {
	Method string
	To     common.Address
	Data   []byte
}

func newCall(to common.Address, fn *w3.Func, name string, args ...any) (Call, error) {
	data, err := fn.EncodeArgs(args...)
	if err != nil {
		return Call{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return Call{Method: name, To: to, Data: data}, nil
}

func callFunc(ctx context.Context, c Caller, to common.Address, fn *w3.Func, args []any, returns ...any) error {
	input, err := fn.EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input})
	if err != nil {
		return err
	}
	if err := fn.DecodeReturns(out, returns...); err != nil {
		return fmt.Errorf("decode %s: %w", fn.Signature, err)
	}
	return nil
}

// MethodOf names the function a calldata blob targets, or "" when unknown.
func MethodOf(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	return methodNames[sel]
}

var methodNames = map[[4]byte]string{}

func register(name string, fn *w3.Func) *w3.Func {
	methodNames[fn.Selector] = name
	return fn
}
