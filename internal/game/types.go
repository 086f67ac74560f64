// Package game runs the staking bot: it snapshots the wallet's game state,
// decides whether to claim or buy, and sequences the resulting transactions.
package game

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/MartinGerritsen/mining.game.bot/internal/catalog"
	"github.com/MartinGerritsen/mining.game.bot/internal/price"
)

// FreeMintID is the catalog id of the non-transferable promotional item.
const FreeMintID uint64 = 1

// Ledger is the chain access the bot needs. *chain.Client implements it.
type Ledger interface {
	Address() common.Address
	ChainID() *big.Int
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context) (uint64, error)
	SignTx(tx *types.Transaction) (*types.Transaction, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// CatalogSource returns the memoized catalog.
type CatalogSource interface {
	Items(ctx context.Context) ([]catalog.Item, error)
}

// PriceSource is optional; a failing source only hides the USD line.
type PriceSource interface {
	Quote(ctx context.Context) (price.Quote, error)
}

type InventoryEntry struct {
	CatalogID uint64
	Name      string
	Quantity  *big.Int
}

type StakingPosition struct {
	PositionID *big.Int
	CatalogID  uint64
	Name       string
	Staked     *big.Int
	Pending    *big.Int
}

type MarketListing struct {
	Slot         uint64
	ListingID    *big.Int
	CatalogID    uint64
	PricePerUnit *big.Int
	Currency     common.Address
}

// Wallet balances. Donation fields are nil when donation tracking is off.
type Wallet struct {
	Primary         *big.Int
	Gas             *big.Int
	DonationPrimary *big.Int
	DonationGas     *big.Int
}

// Snapshot is one complete read of the game state. It is never mutated
// after Refresh returns it.
type Snapshot struct {
	Network        string
	TakenAt        time.Time
	Catalog        []catalog.Item
	Inventory      []InventoryEntry
	Positions      []StakingPosition
	Listings       []MarketListing
	Wallet         Wallet
	FreeMintStaked bool
	// NewDonation is the donation wallet increase first seen by this
	// snapshot, nil when there was none.
	NewDonation *big.Int
}

// TotalPending sums Pending over Positions.
func (s *Snapshot) TotalPending() *big.Int {
	total := new(big.Int)
	for _, p := range s.Positions {
		total.Add(total, p.Pending)
	}
	return total
}

// ItemName falls back to "#id" for ids missing from the catalog.
func (s *Snapshot) ItemName(id uint64) string {
	for _, it := range s.Catalog {
		if it.ID == id {
			return it.Name
		}
	}
	return "#" + new(big.Int).SetUint64(id).String()
}

// DonationTally tracks donations seen in the donation wallet this session.
type DonationTally struct {
	Seeded       bool
	LastObserved *big.Int
	SessionTotal *big.Int
}

// observe folds a new donation-wallet balance in. The first observation only
// seeds the baseline; a decrease rebaselines without reporting.
func (t DonationTally) observe(balance *big.Int) (DonationTally, *big.Int) {
	next := DonationTally{Seeded: true, LastObserved: new(big.Int).Set(balance), SessionTotal: t.SessionTotal}
	if next.SessionTotal == nil {
		next.SessionTotal = new(big.Int)
	}
	if !t.Seeded {
		return next, nil
	}
	delta := new(big.Int).Sub(balance, t.LastObserved)
	if delta.Sign() <= 0 {
		return next, nil
	}
	next.SessionTotal = new(big.Int).Add(next.SessionTotal, delta)
	return next, delta
}
