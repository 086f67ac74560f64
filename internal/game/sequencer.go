package game

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MartinGerritsen/mining.game.bot/internal/contracts"
	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

// TxOptions tune gas for every transaction.
type TxOptions struct {
	GasLimitBufferPct   int64 // added on top of the estimate
	GasPriceMulPct      int64 // 100 = suggested price as is
	ApprovalMaxAttempts int
}

func (o TxOptions) withDefaults() TxOptions {
	if o.GasPriceMulPct <= 0 {
		o.GasPriceMulPct = 100
	}
	if o.GasLimitBufferPct < 0 {
		o.GasLimitBufferPct = 0
	}
	if o.ApprovalMaxAttempts <= 0 {
		o.ApprovalMaxAttempts = 3
	}
	return o
}

// TxRequest is one call to run through the pipeline.
type TxRequest struct {
	Label string
	Call  contracts.Call
	Value *big.Int
}

// TxResult describes a transaction after the pipeline ran it.
type TxResult struct {
	Label    string
	Method   string
	State    TxState
	Hash     common.Hash
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
	Receipt  *types.Receipt
}

// Sequencer builds, signs, sends and confirms transactions one at a time.
type Sequencer struct {
	network  string
	ledger   Ledger
	b        Bindings
	policy   Policy
	donation DonationStrategy
	donateTo common.Address
	explorer string
	opts     TxOptions
	reporter Reporter
	observer Observer
	log      *zap.Logger
}

// SequencerConfig wires a Sequencer.
type SequencerConfig struct {
	Network         string
	Ledger          Ledger
	Bindings        Bindings
	Policy          Policy
	Donation        DonationStrategy
	DonationAddress common.Address
	ExplorerTxURL   string // prefix for tx links, may be empty
	Options         TxOptions
	Reporter        Reporter
	Observer        Observer
	Logger          *zap.Logger
}

func NewSequencer(cfg SequencerConfig) *Sequencer {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Donation == nil {
		cfg.Donation = TransferDonation{}
	}
	return &Sequencer{
		network:  cfg.Network,
		ledger:   cfg.Ledger,
		b:        cfg.Bindings,
		policy:   cfg.Policy,
		donation: cfg.Donation,
		donateTo: cfg.DonationAddress,
		explorer: cfg.ExplorerTxURL,
		opts:     cfg.Options.withDefaults(),
		reporter: cfg.Reporter,
		observer: cfg.Observer,
		log:      cfg.Logger.With(zap.String("network", cfg.Network)),
	}
}

// Submit runs req through estimate, price, nonce, sign, send and one
// confirmation. It returns only after the receipt is in or a step failed.
func (s *Sequencer) Submit(ctx context.Context, req TxRequest) (*TxResult, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.Call.To
	res := &TxResult{Label: req.Label, Method: req.Call.Method, State: TxBuilt}
	log := s.log.With(zap.String("tx", req.Label), zap.String("method", req.Call.Method))

	fail := func(err error) (*TxResult, error) {
		reached := res.State
		res.State = TxFailed
		s.observer.TxFinished(s.network, req.Call.Method, TxFailed)
		log.Warn("tx failed", zap.Stringer("reached", reached), zap.Error(err))
		return res, &TxError{Label: req.Label, Reached: reached, Err: err}
	}

	gas, err := s.ledger.EstimateGas(ctx, ethereum.CallMsg{From: s.ledger.Address(), To: &to, Value: value, Data: req.Call.Data})
	if err != nil {
		return fail(fmt.Errorf("estimate gas: %w", err))
	}
	gas += gas * uint64(s.opts.GasLimitBufferPct) / 100

	price, err := s.ledger.SuggestGasPrice(ctx)
	if err != nil {
		return fail(fmt.Errorf("gas price: %w", err))
	}
	price = new(big.Int).Div(new(big.Int).Mul(price, big.NewInt(s.opts.GasPriceMulPct)), big.NewInt(100))
	res.GasLimit, res.GasPrice, res.State = gas, price, TxGasEstimated

	nonce, err := s.ledger.NonceAt(ctx)
	if err != nil {
		return fail(fmt.Errorf("nonce: %w", err))
	}
	res.Nonce = nonce

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: price,
		Data:     req.Call.Data,
	})
	signed, err := s.ledger.SignTx(tx)
	if err != nil {
		return fail(fmt.Errorf("sign: %w", err))
	}
	res.State = TxSigned

	if err := s.ledger.SendTransaction(ctx, signed); err != nil {
		return fail(fmt.Errorf("broadcast: %w", err))
	}
	res.State, res.Hash = TxBroadcast, signed.Hash()
	log.Info("tx broadcast", zap.String("hash", res.Hash.Hex()), zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas), zap.Stringer("gas_price", price))

	rcpt, err := s.ledger.WaitConfirmed(ctx, signed)
	if err != nil {
		return fail(fmt.Errorf("confirm: %w", err))
	}
	res.State, res.Receipt = TxConfirmed, rcpt
	s.observer.TxFinished(s.network, req.Call.Method, TxConfirmed)
	log.Info("tx confirmed", zap.String("hash", res.Hash.Hex()), zap.Uint64("gas_used", rcpt.GasUsed))
	if s.explorer != "" {
		s.reporter.Infof(s.network, "%s: %s%s", req.Label, s.explorer, res.Hash.Hex())
	}
	return res, nil
}

func (s *Sequencer) submitCall(ctx context.Context, label string, call contracts.Call, err error) (*TxResult, error) {
	if err != nil {
		return nil, &TxError{Label: label, Reached: TxBuilt, Err: err}
	}
	return s.Submit(ctx, TxRequest{Label: label, Call: call})
}

// EnsureStakingApproval makes sure the staking contract may move the wallet's
// items. It sends at most ApprovalMaxAttempts approvals.
func (s *Sequencer) EnsureStakingApproval(ctx context.Context) error {
	owner, operator := s.ledger.Address(), s.b.Staking.Address
	for attempt := 1; ; attempt++ {
		ok, err := s.b.Items.IsApprovedForAll(ctx, owner, operator)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrApprovalFailed, err)
		}
		if ok {
			return nil
		}
		if attempt > s.opts.ApprovalMaxAttempts {
			return fmt.Errorf("%w: still not approved after %d attempts", ErrApprovalFailed, s.opts.ApprovalMaxAttempts)
		}
		s.reporter.Infof(s.network, "Approving staking contract for items (attempt %d).", attempt)
		call, err := s.b.Items.SetApprovalForAll(operator, true)
		if _, err := s.submitCall(ctx, "approve staking", call, err); err != nil {
			return fmt.Errorf("%w: %w", ErrApprovalFailed, err)
		}
	}
}

// ClaimResult summarizes a claim batch.
type ClaimResult struct {
	Claimed int
	Failed  int
	Total   *big.Int
}

// ClaimRewards claims every position above the per-position minimum, one
// transaction each. With grouping on and a buy pending, positions of the
// auto-buy item are unstaked instead. Failures do not stop the batch.
func (s *Sequencer) ClaimRewards(ctx context.Context, snap *Snapshot, buyPending bool) ClaimResult {
	res := ClaimResult{Total: new(big.Int)}
	minPending := units.ToWei(s.policy.ClaimMinPerPosition)
	for _, p := range snap.Positions {
		if p.Pending.Cmp(minPending) <= 0 {
			continue
		}
		var (
			call  contracts.Call
			err   error
			label string
		)
		if s.policy.AutoGroup && buyPending && s.policy.AutoBuyID != 0 && p.CatalogID == s.policy.AutoBuyID {
			label = fmt.Sprintf("unstake %s (%s)", p.Name, p.Staked)
			s.reporter.Infof(s.network, "Unstaking %s (%s), claiming %s.", p.Name, p.Staked, units.Format(p.Pending, 2))
			call, err = s.b.Staking.Unstake(p.PositionID)
		} else {
			label = fmt.Sprintf("claim %s (%s)", p.Name, p.Staked)
			s.reporter.Infof(s.network, "Claiming %s from %s (%s).", units.Format(p.Pending, 2), p.Name, p.Staked)
			call, err = s.b.Staking.WithdrawRewards(p.PositionID)
		}
		if _, err := s.submitCall(ctx, label, call, err); err != nil {
			res.Failed++
			s.reporter.Failure(s.network, label, err)
			continue
		}
		res.Claimed++
		res.Total.Add(res.Total, p.Pending)
	}
	s.reporter.Infof(s.network, "%s claimed from %d position(s).", units.Format(res.Total, 2), res.Claimed)
	return res
}

// StakeResult summarizes a stake batch.
type StakeResult struct {
	Staked  int
	Failed  int
	Skipped int
}

// Stake stakes the full quantity of every inventory entry, one transaction
// each, skipping the free-mint item while one is already staked.
func (s *Sequencer) Stake(ctx context.Context, inventory []InventoryEntry, freeMintStaked bool) StakeResult {
	var res StakeResult
	for _, it := range inventory {
		if it.CatalogID == FreeMintID && freeMintStaked {
			res.Skipped++
			continue
		}
		label := fmt.Sprintf("stake %s x%s", it.Name, it.Quantity)
		s.reporter.Infof(s.network, "Staking %s %s(s).", it.Quantity, it.Name)
		call, err := s.b.Staking.Stake(it.CatalogID, it.Quantity)
		if _, err := s.submitCall(ctx, label, call, err); err != nil {
			res.Failed++
			s.reporter.Failure(s.network, label, err)
			continue
		}
		res.Staked++
	}
	s.reporter.Infof(s.network, "Finished stake process.")
	return res
}

// Approve lets spender move amount of the reward token.
func (s *Sequencer) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*TxResult, error) {
	call, err := s.b.Token.Approve(spender, amount)
	return s.submitCall(ctx, "approve "+units.Format(amount, 2), call, err)
}

// BuyResult describes a completed purchase.
type BuyResult struct {
	Listing MarketListing
	Plan    PurchasePlan
	Donated bool
}

// Buy purchases as many units of id as balance allows from the cheapest
// listing: approve, buy, then the donation surcharge. silent suppresses the
// insufficient-balance message for the automatic per-cycle buy.
func (s *Sequencer) Buy(ctx context.Context, snap *Snapshot, id uint64, balance *big.Int, silent bool) (BuyResult, error) {
	if s.b.Market == nil {
		return BuyResult{}, ErrNoMarket
	}
	listing, ok := cheapestListing(snap.Listings, id)
	if !ok {
		return BuyResult{}, ErrNoListing
	}
	plan := PlanPurchase(balance, listing.PricePerUnit, s.policy.DonationPercentage)
	res := BuyResult{Listing: listing, Plan: plan}
	if !plan.Affordable() {
		if !silent {
			s.reporter.Warnf(s.network, "Not enough tokens to order %s.", snap.ItemName(id))
		}
		return res, ErrNotAffordable
	}

	name := snap.ItemName(id)
	s.reporter.Infof(s.network, "Approving usage of %s.", units.Format(plan.Total, 2))
	if _, err := s.Approve(ctx, s.b.Market.Address, plan.Total); err != nil {
		return res, err
	}

	s.reporter.Infof(s.network, "Buying %s (%s).", name, plan.Quantity)
	call, err := s.b.Market.Buy(listing.ListingID, s.ledger.Address(), plan.Quantity, listing.Currency, plan.Total)
	if _, err := s.submitCall(ctx, fmt.Sprintf("buy %s x%s", name, plan.Quantity), call, err); err != nil {
		return res, err
	}
	s.reporter.Successf(s.network, "Bought %s (%s).", name, plan.Quantity)

	if plan.Donation.Sign() > 0 {
		if _, err := s.donate(ctx, plan.Donation); err != nil {
			s.reporter.Failure(s.network, "donation", err)
		} else {
			res.Donated = true
		}
	}
	return res, nil
}

// Donate sends amount tokens to the donation address after validating it
// against balance. Invalid amounts never reach the ledger.
func (s *Sequencer) Donate(ctx context.Context, amount decimal.Decimal, balance *big.Int) (*TxResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	wei := units.ToWei(amount)
	if wei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if balance == nil || wei.Cmp(balance) > 0 {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance, units.Format(balance, 2), amount)
	}
	return s.donate(ctx, wei)
}

func (s *Sequencer) donate(ctx context.Context, wei *big.Int) (*TxResult, error) {
	if s.donateTo == (common.Address{}) {
		return nil, errors.New("no donation address configured")
	}
	s.reporter.Infof(s.network, "Preparing donation of %s.", units.Format(wei, 4))
	calls, err := s.donation.Calls(s.b, s.donateTo, wei)
	if err != nil {
		return nil, &TxError{Label: "donation", Reached: TxBuilt, Err: err}
	}
	var last *TxResult
	for _, c := range calls {
		res, err := s.Submit(ctx, TxRequest{Label: "donation " + c.Method, Call: c})
		if err != nil {
			return res, err
		}
		last = res
	}
	return last, nil
}
