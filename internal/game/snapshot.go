package game

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/MartinGerritsen/mining.game.bot/internal/catalog"
	"github.com/MartinGerritsen/mining.game.bot/internal/chain"
)

// StakingApprover grants the staking contract access to the wallet's items.
type StakingApprover interface {
	EnsureStakingApproval(ctx context.Context) error
}

// AggregatorOptions tune a refresh.
type AggregatorOptions struct {
	TrackDonations  bool
	DonationAddress common.Address
	MaxSlots        uint64 // listing slots scanned at most
	EmptyRun        int    // consecutive empty slots that end the scan
}

// RefreshOptions select the side effects a refresh may have.
type RefreshOptions struct {
	EnsureApprovals bool
}

// Aggregator reads the game state into a Snapshot.
type Aggregator struct {
	ledger   Ledger
	b        Bindings
	catalog  CatalogSource
	approver StakingApprover
	opts     AggregatorOptions
	observer Observer
	log      *zap.Logger
}

func NewAggregator(ledger Ledger, b Bindings, cat CatalogSource, approver StakingApprover, opts AggregatorOptions, observer Observer, log *zap.Logger) *Aggregator {
	if opts.MaxSlots == 0 {
		opts.MaxSlots = 256
	}
	if opts.EmptyRun <= 0 {
		opts.EmptyRun = 16
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{ledger: ledger, b: b, catalog: cat, approver: approver, opts: opts, observer: observer, log: log}
}

// Refresh builds a fresh snapshot and commits it, together with the updated
// donation tally, to sess. On any error sess keeps its previous state.
func (a *Aggregator) Refresh(ctx context.Context, sess *Session, ro RefreshOptions) (*Snapshot, error) {
	start := time.Now()
	log := a.log.With(zap.String("network", sess.Network))

	items, err := a.catalog.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	snap := &Snapshot{Network: sess.Network, Catalog: items}

	if snap.Inventory, err = a.inventory(ctx, items); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	if snap.Listings, err = a.listings(ctx); err != nil {
		return nil, fmt.Errorf("listings: %w", err)
	}
	if snap.Wallet, err = a.wallet(ctx); err != nil {
		return nil, fmt.Errorf("balances: %w", err)
	}

	tally := sess.Donations()
	if snap.Wallet.DonationPrimary != nil {
		tally, snap.NewDonation = tally.observe(snap.Wallet.DonationPrimary)
	}

	if ro.EnsureApprovals && a.approver != nil {
		if err := a.approver.EnsureStakingApproval(ctx); err != nil {
			return nil, err
		}
	}

	if snap.Positions, err = a.positions(ctx, snap); err != nil {
		return nil, fmt.Errorf("staking: %w", err)
	}
	for _, p := range snap.Positions {
		if p.CatalogID == FreeMintID {
			snap.FreeMintStaked = true
			break
		}
	}

	snap.TakenAt = time.Now()
	sess.commit(snap, tally)
	a.observer.SnapshotTaken(snap)
	log.Debug("snapshot taken",
		zap.Int("inventory", len(snap.Inventory)),
		zap.Int("positions", len(snap.Positions)),
		zap.Int("listings", len(snap.Listings)),
		zap.Duration("took", time.Since(start)))
	return snap, nil
}

func (a *Aggregator) inventory(ctx context.Context, items []catalog.Item) ([]InventoryEntry, error) {
	owner := a.ledger.Address()
	var out []InventoryEntry
	for _, it := range items {
		bal, err := a.b.Items.BalanceOf(ctx, owner, it.ID)
		if err != nil {
			return nil, fmt.Errorf("balanceOf(%d): %w", it.ID, err)
		}
		if bal.Sign() > 0 {
			out = append(out, InventoryEntry{CatalogID: it.ID, Name: it.Name, Quantity: bal})
		}
	}
	return out, nil
}

// listings scans market slots from zero. A revert marks the end of the
// listing array.
func (a *Aggregator) listings(ctx context.Context) ([]MarketListing, error) {
	if a.b.Market == nil {
		return nil, nil
	}
	var (
		out   []MarketListing
		empty int
	)
	for slot := uint64(0); slot < a.opts.MaxSlots; slot++ {
		l, err := a.b.Market.Listing(ctx, slot)
		if err != nil {
			if chain.IsRevert(err) {
				break
			}
			return nil, err
		}
		if l.Empty() {
			if empty++; empty >= a.opts.EmptyRun {
				break
			}
			continue
		}
		empty = 0
		if l.Currency != a.b.Token.Address || l.TokenID == nil || !l.TokenID.IsUint64() {
			continue
		}
		out = append(out, MarketListing{
			Slot:         slot,
			ListingID:    l.ListingID,
			CatalogID:    l.TokenID.Uint64(),
			PricePerUnit: l.BuyoutPricePerToken,
			Currency:     l.Currency,
		})
	}
	return out, nil
}

func (a *Aggregator) wallet(ctx context.Context) (Wallet, error) {
	var (
		w   Wallet
		err error
	)
	owner := a.ledger.Address()
	if w.Primary, err = a.b.Token.BalanceOf(ctx, owner); err != nil {
		return w, err
	}
	if w.Gas, err = a.ledger.BalanceAt(ctx, owner); err != nil {
		return w, err
	}
	if !a.opts.TrackDonations || a.opts.DonationAddress == (common.Address{}) {
		return w, nil
	}
	if w.DonationPrimary, err = a.b.Token.BalanceOf(ctx, a.opts.DonationAddress); err != nil {
		return w, err
	}
	if w.DonationGas, err = a.ledger.BalanceAt(ctx, a.opts.DonationAddress); err != nil {
		return w, err
	}
	return w, nil
}

func (a *Aggregator) positions(ctx context.Context, snap *Snapshot) ([]StakingPosition, error) {
	logs, err := a.b.Staking.ActivityLogs(ctx, a.ledger.Address())
	if err != nil {
		return nil, err
	}
	var out []StakingPosition
	for _, l := range logs {
		if l.IsWithdrawn || l.TokenID == nil || !l.TokenID.IsUint64() {
			continue
		}
		pending, err := a.b.Staking.RewardsAmount(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("getRewardsAmount(%s): %w", l.ID, err)
		}
		if pending.Sign() < 0 {
			pending = new(big.Int)
		}
		id := l.TokenID.Uint64()
		out = append(out, StakingPosition{
			PositionID: l.ID,
			CatalogID:  id,
			Name:       snap.ItemName(id),
			Staked:     l.Amount,
			Pending:    pending,
		})
	}
	return out, nil
}
