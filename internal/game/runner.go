package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

// RunnerConfig describes one tracked network.
type RunnerConfig struct {
	Network   string
	GasSymbol string
	Policy    Policy
	Tracking  bool // donation wallet shown in reports
}

// Runner executes cycles and commands for one network. Every public method
// holds the session guard for its whole duration.
type Runner struct {
	cfg      RunnerConfig
	sess     *Session
	agg      *Aggregator
	seq      *Sequencer
	b        Bindings
	reporter Reporter
	prices   PriceSource
	observer Observer
	log      *zap.Logger
}

// RunnerDeps are the collaborators of a Runner. Prices and Observer may be nil.
type RunnerDeps struct {
	Session    *Session
	Aggregator *Aggregator
	Sequencer  *Sequencer
	Bindings   Bindings
	Reporter   Reporter
	Prices     PriceSource
	Observer   Observer
	Logger     *zap.Logger
}

func NewRunner(cfg RunnerConfig, d RunnerDeps) *Runner {
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Session == nil {
		d.Session = NewSession(cfg.Network)
	}
	return &Runner{
		cfg:      cfg,
		sess:     d.Session,
		agg:      d.Aggregator,
		seq:      d.Sequencer,
		b:        d.Bindings,
		reporter: d.Reporter,
		prices:   d.Prices,
		observer: d.Observer,
		log:      d.Logger.With(zap.String("network", cfg.Network)),
	}
}

func (r *Runner) Network() string { return r.cfg.Network }

func (r *Runner) Session() *Session { return r.sess }

// guard runs fn holding the session. Work inside fn is detached from ctx
// cancellation so a quit never interrupts a broadcast transaction.
func (r *Runner) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.sess.TryBegin() {
		return ErrCycleInProgress
	}
	defer r.sess.End()
	return fn(context.WithoutCancel(ctx))
}

// Cycle is one scheduled pass: refresh with approvals, report, claim when
// the trigger is crossed, then the automatic buy and stake.
func (r *Runner) Cycle(ctx context.Context) error {
	start := time.Now()
	err := r.guard(ctx, r.cycle)
	if !errors.Is(err, ErrCycleInProgress) {
		r.observer.CycleFinished(r.cfg.Network, time.Since(start), err)
	}
	return err
}

func (r *Runner) cycle(ctx context.Context) error {
	snap, err := r.refresh(ctx, true)
	if err != nil {
		return err
	}
	d := Evaluate(snap, r.cfg.Policy)
	r.render(ctx, snap, d)

	if d.ShouldClaim {
		res := r.seq.ClaimRewards(ctx, snap, d.BuyCatalogID != 0)
		if res.Claimed > 0 {
			if snap, err = r.refresh(ctx, false); err != nil {
				return err
			}
			r.reporter.Infof(r.cfg.Network, "Balance after claim: %s.", units.Format(snap.Wallet.Primary, 2))
		}
	}

	if d.BuyCatalogID != 0 {
		if err := r.buyAndStake(ctx, snap, d.BuyCatalogID, true); err != nil {
			return err
		}
	}

	r.reporter.CycleDone(r.cfg.Network, time.Now())
	return nil
}

// buyAndStake buys id and stakes the refreshed inventory. Missing listings
// and insufficient funds are not errors for the automatic buy.
func (r *Runner) buyAndStake(ctx context.Context, snap *Snapshot, id uint64, silent bool) error {
	_, err := r.seq.Buy(ctx, snap, id, snap.Wallet.Primary, silent)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotAffordable):
		case errors.Is(err, ErrNoListing), errors.Is(err, ErrNoMarket):
			r.reporter.Warnf(r.cfg.Network, "Cannot buy %s: %v.", snap.ItemName(id), err)
		default:
			r.reporter.Failure(r.cfg.Network, "buy "+snap.ItemName(id), err)
		}
		if silent {
			return nil
		}
		return err
	}

	if snap, err = r.refresh(ctx, false); err != nil {
		return err
	}
	r.seq.Stake(ctx, snap.Inventory, snap.FreeMintStaked)
	return nil
}

func (r *Runner) refresh(ctx context.Context, approvals bool) (*Snapshot, error) {
	snap, err := r.agg.Refresh(ctx, r.sess, RefreshOptions{EnsureApprovals: approvals})
	if err != nil {
		r.reporter.Failure(r.cfg.Network, "refresh", err)
		return nil, err
	}
	if snap.NewDonation != nil {
		r.reporter.Donation(r.cfg.Network, snap.NewDonation, r.sess.Donations().SessionTotal)
	}
	return snap, nil
}

func (r *Runner) render(ctx context.Context, snap *Snapshot, d Decision) {
	v := View{
		Snapshot:  snap,
		Decision:  d,
		Policy:    r.cfg.Policy,
		Donations: r.sess.Donations(),
		GasSymbol: r.cfg.GasSymbol,
		Tracking:  r.cfg.Tracking,
	}
	if r.prices != nil {
		q, err := r.prices.Quote(ctx)
		if err != nil {
			r.log.Debug("price quote unavailable", zap.Error(err))
		} else {
			v.Quote = &q
		}
	}
	r.reporter.Snapshot(v)
}

// Status refreshes without approvals and reports. It sends no transactions.
func (r *Runner) Status(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := r.guard(ctx, func(ctx context.Context) error {
		var err error
		if snap, err = r.refresh(ctx, false); err != nil {
			return err
		}
		r.render(ctx, snap, Evaluate(snap, r.cfg.Policy))
		r.reporter.CycleDone(r.cfg.Network, time.Now())
		return nil
	})
	return snap, err
}

// Claim claims every eligible position regardless of the trigger.
func (r *Runner) Claim(ctx context.Context) (ClaimResult, error) {
	var res ClaimResult
	err := r.guard(ctx, func(ctx context.Context) error {
		snap, err := r.refresh(ctx, false)
		if err != nil {
			return err
		}
		res = r.seq.ClaimRewards(ctx, snap, false)
		if res.Claimed > 0 {
			if snap, err = r.refresh(ctx, false); err != nil {
				return err
			}
			r.reporter.Infof(r.cfg.Network, "Balance after claim: %s.", units.Format(snap.Wallet.Primary, 2))
		}
		return nil
	})
	return res, err
}

// Buy buys id, or the configured auto-buy item when id is zero, then stakes.
func (r *Runner) Buy(ctx context.Context, id uint64) error {
	if id == 0 {
		id = r.cfg.Policy.AutoBuyID
	}
	if id == 0 {
		r.reporter.Warnf(r.cfg.Network, "No item to buy, set AUTO_BUY_ID or pass an item id.")
		return fmt.Errorf("%w: no item id given", ErrNoListing)
	}
	return r.guard(ctx, func(ctx context.Context) error {
		snap, err := r.refresh(ctx, true)
		if err != nil {
			return err
		}
		return r.buyAndStake(ctx, snap, id, false)
	})
}

// Stake stakes the whole inventory.
func (r *Runner) Stake(ctx context.Context) (StakeResult, error) {
	var res StakeResult
	err := r.guard(ctx, func(ctx context.Context) error {
		snap, err := r.refresh(ctx, true)
		if err != nil {
			return err
		}
		res = r.seq.Stake(ctx, snap.Inventory, snap.FreeMintStaked)
		return nil
	})
	return res, err
}

// Donate sends amount tokens to the donation address.
func (r *Runner) Donate(ctx context.Context, amount decimal.Decimal) error {
	return r.guard(ctx, func(ctx context.Context) error {
		balance, err := r.b.Token.BalanceOf(ctx, r.seq.ledger.Address())
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		if _, err := r.seq.Donate(ctx, amount, balance); err != nil {
			r.reporter.Failure(r.cfg.Network, "donation", err)
			return err
		}
		r.reporter.Successf(r.cfg.Network, "Donated %s. Thank you!", amount.String())
		return nil
	})
}
