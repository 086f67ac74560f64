// Package contractstest provides an in-memory ledger that answers the game
// contracts' calls and applies the effects of sent transactions.
package contractstest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/MartinGerritsen/mining.game.bot/internal/contracts"
)

// ErrRevert mimics the RPC error of a reverted eth_call.
var ErrRevert = errors.New("execution reverted")

// Addresses of the simulated contracts.
type Addresses struct {
	Token     common.Address
	Items     common.Address
	Staking   common.Address
	Market    common.Address
	MultiSend common.Address
}

// DefaultAddresses returns distinct fixed addresses for each contract.
func DefaultAddresses() Addresses {
	return Addresses{
		Token:     common.HexToAddress("0xE960d5076cd3169C343Ee287A2c3380A222e5839"),
		Items:     common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Staking:   common.HexToAddress("0x00000000000000000000000000000000000000a2"),
		Market:    common.HexToAddress("0x00000000000000000000000000000000000000a3"),
		MultiSend: common.HexToAddress("0x00000000000000000000000000000000000000a4"),
	}
}

// Sent is one broadcast transaction with its decoded arguments.
type Sent struct {
	Method   string
	To       common.Address
	Args     []any
	Nonce    uint64
	Gas      uint64
	GasPrice *big.Int
}

// Key is "method:firstArg", the form accepted by Ledger.Fail.
func (s Sent) Key() string {
	if len(s.Args) == 0 {
		return s.Method
	}
	return fmt.Sprintf("%s:%v", s.Method, s.Args[0])
}

// Ledger is a fake chain. Zero value is not usable, call New.
type Ledger struct {
	mu sync.Mutex

	Wallet  common.Address
	Addrs   Addresses
	Chain   *big.Int
	GasUsed uint64

	Token     map[common.Address]*big.Int
	Native    map[common.Address]*big.Int
	Items     map[uint64]*big.Int
	Allowance map[common.Address]*big.Int
	Approved  bool
	// ApprovalSticks controls whether setApprovalForAll flips Approved.
	ApprovalSticks bool
	Logs           []contracts.ActivityLog
	Rewards        map[uint64]*big.Int
	Listings       []contracts.Listing

	// Fail maps a method ("stake") or key ("stake:2") to an error returned
	// by gas estimation. FailRead does the same for eth_call by method name.
	Fail     map[string]error
	FailRead map[string]error

	Steps []string
	Sent  []Sent
	Reads int

	nonce uint64
}

func New(wallet common.Address, addrs Addresses) *Ledger {
	return &Ledger{
		Wallet:         wallet,
		Addrs:          addrs,
		Chain:          big.NewInt(137),
		GasUsed:        100_000,
		Token:          map[common.Address]*big.Int{},
		Native:         map[common.Address]*big.Int{},
		Items:          map[uint64]*big.Int{},
		Allowance:      map[common.Address]*big.Int{},
		ApprovalSticks: true,
		Rewards:        map[uint64]*big.Int{},
		Fail:           map[string]error{},
		FailRead:       map[string]error{},
	}
}

// Stake records a position directly, as if staked in an earlier session.
func (l *Ledger) Stake(positionID, catalogID uint64, amount int64, pending *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Logs = append(l.Logs, contracts.ActivityLog{
		ID:        new(big.Int).SetUint64(positionID),
		User:      l.Wallet,
		TokenID:   new(big.Int).SetUint64(catalogID),
		Amount:    big.NewInt(amount),
		StartTime: big.NewInt(1),
	})
	l.Rewards[positionID] = pending
}

// List appends a market slot selling catalogID at price, in currency.
func (l *Ledger) List(listingID, catalogID uint64, price *big.Int, currency common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Listings = append(l.Listings, contracts.Listing{
		ListingID:            new(big.Int).SetUint64(listingID),
		AssetContract:        l.Addrs.Items,
		TokenID:              new(big.Int).SetUint64(catalogID),
		StartTime:            big.NewInt(1),
		EndTime:              big.NewInt(0),
		Quantity:             big.NewInt(1000),
		Currency:             currency,
		ReservePricePerToken: big.NewInt(0),
		BuyoutPricePerToken:  price,
	})
}

// EmptySlot appends a cancelled listing.
func (l *Ledger) EmptySlot() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Listings = append(l.Listings, contracts.Listing{
		ListingID: big.NewInt(0), TokenID: big.NewInt(0), StartTime: big.NewInt(0), EndTime: big.NewInt(0),
		Quantity: big.NewInt(0), ReservePricePerToken: big.NewInt(0), BuyoutPricePerToken: big.NewInt(0),
	})
}

// Writes counts attempted broadcasts, failed ones included.
func (l *Ledger) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.Steps {
		if strings.HasPrefix(s, "send:") {
			n++
		}
	}
	return n
}

// SentKeys lists the Key of every broadcast transaction.
func (l *Ledger) SentKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.Sent))
	for _, s := range l.Sent {
		out = append(out, s.Key())
	}
	return out
}

func (l *Ledger) Address() common.Address { return l.Wallet }

func (l *Ledger) ChainID() *big.Int { return new(big.Int).Set(l.Chain) }

func (l *Ledger) BalanceAt(_ context.Context, addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Reads++
	if err := l.FailRead["native"]; err != nil {
		return nil, err
	}
	return valueOr0(l.Native[addr]), nil
}

func (l *Ledger) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Reads++
	if msg.To == nil {
		return nil, errors.New("call without target")
	}
	method := contracts.MethodOf(msg.Data)
	if err := l.FailRead[method]; err != nil {
		return nil, err
	}

	switch *msg.To {
	case l.Addrs.Token:
		if method != "balanceOf" {
			break
		}
		var owner common.Address
		if err := contracts.ERC20BalanceOf.DecodeArgs(msg.Data, &owner); err != nil {
			return nil, err
		}
		return contracts.ERC20BalanceOf.Returns.Pack(valueOr0(l.Token[owner]))

	case l.Addrs.Items:
		switch method {
		case "balanceOf":
			var owner common.Address
			id := new(big.Int)
			if err := contracts.ERC1155BalanceOf.DecodeArgs(msg.Data, &owner, id); err != nil {
				return nil, err
			}
			bal := big.NewInt(0)
			if owner == l.Wallet {
				bal = valueOr0(l.Items[id.Uint64()])
			}
			return contracts.ERC1155BalanceOf.Returns.Pack(bal)
		case "isApprovedForAll":
			return contracts.ERC1155IsApprovedForAll.Returns.Pack(l.Approved)
		}

	case l.Addrs.Staking:
		switch method {
		case "getActivityLogs":
			return contracts.StakingABI.Methods["getActivityLogs"].Outputs.Pack(l.Logs)
		case "getRewardsAmount":
			id := new(big.Int)
			if err := contracts.StakingGetRewardsAmount.DecodeArgs(msg.Data, id); err != nil {
				return nil, err
			}
			return contracts.StakingGetRewardsAmount.Returns.Pack(valueOr0(l.Rewards[id.Uint64()]), big.NewInt(0))
		}

	case l.Addrs.Market:
		if method != "listings" {
			break
		}
		args, err := contracts.MarketABI.Methods["listings"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		idx := args[0].(*big.Int).Uint64()
		if idx >= uint64(len(l.Listings)) {
			return nil, ErrRevert
		}
		return contracts.EncodeListing(l.Listings[idx])
	}
	return nil, fmt.Errorf("%w: no handler for %s on %s", ErrRevert, method, msg.To.Hex())
}

func (l *Ledger) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := decodeSent(msg.To, msg.Data)
	if err != nil {
		return 0, err
	}
	l.Steps = append(l.Steps, "estimate:"+s.Method)
	if err := l.Fail[s.Key()]; err != nil {
		return 0, err
	}
	if err := l.Fail[s.Method]; err != nil {
		return 0, err
	}
	return l.GasUsed, nil
}

func (l *Ledger) SuggestGasPrice(context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Steps = append(l.Steps, "price")
	return big.NewInt(30_000_000_000), nil
}

func (l *Ledger) NonceAt(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Steps = append(l.Steps, "nonce")
	return l.nonce, nil
}

// SignTx does not sign; the fake never verifies senders.
func (l *Ledger) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Steps = append(l.Steps, "sign")
	return tx, nil
}

func (l *Ledger) SendTransaction(_ context.Context, tx *types.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := decodeSent(tx.To(), tx.Data())
	if err != nil {
		return err
	}
	s.Nonce, s.Gas, s.GasPrice = tx.Nonce(), tx.Gas(), tx.GasPrice()
	l.Steps = append(l.Steps, "send:"+s.Method)
	if tx.Nonce() != l.nonce {
		return fmt.Errorf("nonce too low: have %d want %d", tx.Nonce(), l.nonce)
	}
	l.nonce++
	l.Sent = append(l.Sent, s)
	l.apply(s)
	return nil
}

func (l *Ledger) WaitConfirmed(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Steps = append(l.Steps, "wait:"+contracts.MethodOf(tx.Data()))
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash(), GasUsed: tx.Gas()}, nil
}

func (l *Ledger) apply(s Sent) {
	w := l.Wallet
	switch s.Method {
	case "setApprovalForAll":
		if l.ApprovalSticks {
			l.Approved = s.Args[1].(bool)
		}
	case "approve":
		l.Allowance[s.Args[0].(common.Address)] = s.Args[1].(*big.Int)
	case "transfer":
		l.move(w, s.Args[0].(common.Address), s.Args[1].(*big.Int))
	case "multisendToken":
		to := s.Args[1].([]common.Address)
		amounts := s.Args[2].([]*big.Int)
		for i := range to {
			l.move(w, to[i], amounts[i])
		}
	case "stake":
		id, qty := s.Args[0].(*big.Int).Uint64(), s.Args[1].(*big.Int)
		l.Items[id] = new(big.Int).Sub(valueOr0(l.Items[id]), qty)
		pos := uint64(len(l.Logs) + 1000)
		l.Logs = append(l.Logs, contracts.ActivityLog{
			ID: new(big.Int).SetUint64(pos), User: w, TokenID: new(big.Int).SetUint64(id),
			Amount: new(big.Int).Set(qty), StartTime: big.NewInt(1),
		})
		l.Rewards[pos] = big.NewInt(0)
	case "withdrawRewards":
		pos := s.Args[0].(*big.Int).Uint64()
		l.Token[w] = new(big.Int).Add(valueOr0(l.Token[w]), valueOr0(l.Rewards[pos]))
		l.Rewards[pos] = big.NewInt(0)
	case "unstake":
		pos := s.Args[0].(*big.Int).Uint64()
		l.Token[w] = new(big.Int).Add(valueOr0(l.Token[w]), valueOr0(l.Rewards[pos]))
		l.Rewards[pos] = big.NewInt(0)
		for i := range l.Logs {
			if l.Logs[i].ID.Uint64() == pos {
				l.Logs[i].IsWithdrawn = true
				id := l.Logs[i].TokenID.Uint64()
				l.Items[id] = new(big.Int).Add(valueOr0(l.Items[id]), l.Logs[i].Amount)
			}
		}
	case "buy":
		listingID, qty, total := s.Args[0].(*big.Int), s.Args[2].(*big.Int), s.Args[4].(*big.Int)
		l.Token[w] = new(big.Int).Sub(valueOr0(l.Token[w]), total)
		for _, li := range l.Listings {
			if li.ListingID.Cmp(listingID) == 0 {
				id := li.TokenID.Uint64()
				l.Items[id] = new(big.Int).Add(valueOr0(l.Items[id]), qty)
				break
			}
		}
	}
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) {
	l.Token[from] = new(big.Int).Sub(valueOr0(l.Token[from]), amount)
	l.Token[to] = new(big.Int).Add(valueOr0(l.Token[to]), amount)
}

func decodeSent(to *common.Address, data []byte) (Sent, error) {
	if to == nil {
		return Sent{}, errors.New("contract creation not supported")
	}
	s := Sent{Method: contracts.MethodOf(data), To: *to}
	var err error
	switch s.Method {
	case "approve", "transfer":
		var addr common.Address
		amt := new(big.Int)
		fn := contracts.ERC20Approve
		if s.Method == "transfer" {
			fn = contracts.ERC20Transfer
		}
		err = fn.DecodeArgs(data, &addr, amt)
		s.Args = []any{addr, amt}
	case "setApprovalForAll":
		var op common.Address
		var ok bool
		err = contracts.ERC1155SetApprovalForAll.DecodeArgs(data, &op, &ok)
		s.Args = []any{op, ok}
	case "stake":
		id, qty := new(big.Int), new(big.Int)
		err = contracts.StakingStake.DecodeArgs(data, id, qty)
		s.Args = []any{id, qty}
	case "unstake", "withdrawRewards":
		id := new(big.Int)
		fn := contracts.StakingUnstake
		if s.Method == "withdrawRewards" {
			fn = contracts.StakingWithdrawRewards
		}
		err = fn.DecodeArgs(data, id)
		s.Args = []any{id}
	case "buy":
		listing, qty, total := new(big.Int), new(big.Int), new(big.Int)
		var buyer, currency common.Address
		err = contracts.MarketBuy.DecodeArgs(data, listing, &buyer, qty, &currency, total)
		s.Args = []any{listing, buyer, qty, currency, total}
	case "multisendToken":
		var token common.Address
		var recipients []common.Address
		var amounts []*big.Int
		err = contracts.MultiSendToken.DecodeArgs(data, &token, &recipients, &amounts)
		s.Args = []any{token, recipients, amounts}
	default:
		return s, fmt.Errorf("unknown call %x", data[:min(4, len(data))])
	}
	return s, err
}

func valueOr0(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(x)
}
