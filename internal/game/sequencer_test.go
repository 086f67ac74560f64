package game

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitPipelineOrder(t *testing.T) {
	f := newFixture(t, withTx(TxOptions{GasLimitBufferPct: 20, GasPriceMulPct: 110}))
	call, err := f.b.Staking.Stake(2, big.NewInt(1))
	require.NoError(t, err)

	res, err := f.seq.Submit(context.Background(), TxRequest{Label: "stake", Call: call})
	require.NoError(t, err)
	assert.Equal(t, TxConfirmed, res.State)
	assert.Equal(t, []string{"estimate:stake", "price", "nonce", "sign", "send:stake", "wait:stake"}, f.ledger.Steps)

	require.Len(t, f.ledger.Sent, 1)
	assert.Equal(t, uint64(120_000), f.ledger.Sent[0].Gas)
	assertWei(t, big.NewInt(33_000_000_000), f.ledger.Sent[0].GasPrice)
	assert.Equal(t, uint64(0), res.Nonce)
}

func TestSubmitNoncesAdvance(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		call, err := f.b.Staking.WithdrawRewards(big.NewInt(int64(i)))
		require.NoError(t, err)
		_, err = f.seq.Submit(context.Background(), TxRequest{Label: "claim", Call: call})
		require.NoError(t, err)
	}
	for i, s := range f.ledger.Sent {
		assert.Equal(t, uint64(i), s.Nonce)
	}
}

func TestSubmitFailureReportsState(t *testing.T) {
	f := newFixture(t)
	f.ledger.Fail["stake"] = errors.New("execution reverted: paused")
	call, err := f.b.Staking.Stake(2, big.NewInt(1))
	require.NoError(t, err)

	res, err := f.seq.Submit(context.Background(), TxRequest{Label: "stake Basic Miner", Call: call})
	require.Error(t, err)

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, TxBuilt, txErr.Reached)
	assert.Equal(t, "stake Basic Miner", txErr.Label)
	assert.Equal(t, TxFailed, res.State)
	assert.Zero(t, f.ledger.Writes())
}

func positionsFixture(t *testing.T, opts ...fixtureOption) (*fixture, *Snapshot) {
	t.Helper()
	f := newFixture(t, opts...)
	f.ledger.Stake(10, 2, 1, tokens("60"))
	f.ledger.Stake(11, 3, 1, tokens("70"))
	f.ledger.Stake(12, 2, 1, tokens("40"))
	snap, err := f.agg.Refresh(context.Background(), f.sess, RefreshOptions{})
	require.NoError(t, err)
	return f, snap
}

func TestClaimRewardsSkipsSmallPositions(t *testing.T) {
	f, snap := positionsFixture(t)

	res := f.seq.ClaimRewards(context.Background(), snap, false)
	assert.Equal(t, 2, res.Claimed)
	assert.Zero(t, res.Failed)
	assertWei(t, tokens("130"), res.Total)
	assert.Equal(t, []string{"withdrawRewards:10", "withdrawRewards:11"}, f.ledger.SentKeys())
	assertWei(t, tokens("130"), f.ledger.Token[testWallet])
}

func TestClaimRewardsContinuesAfterFailure(t *testing.T) {
	f, snap := positionsFixture(t)
	f.ledger.Fail["withdrawRewards:10"] = errors.New("execution reverted")

	res := f.seq.ClaimRewards(context.Background(), snap, false)
	assert.Equal(t, 1, res.Claimed)
	assert.Equal(t, 1, res.Failed)
	assertWei(t, tokens("70"), res.Total)
	assert.Equal(t, []string{"withdrawRewards:11"}, f.ledger.SentKeys())
	assert.Len(t, f.rep.failures, 1)
}

func TestClaimRewardsGroupsAutoBuyItem(t *testing.T) {
	p := Policy{ClaimMinPerPosition: decimal.NewFromInt(50), AutoBuyID: 2, AutoGroup: true}
	f, snap := positionsFixture(t, withPolicy(p))

	f.seq.ClaimRewards(context.Background(), snap, true)
	assert.Equal(t, []string{"unstake:10", "withdrawRewards:11"}, f.ledger.SentKeys())

	f2, snap2 := positionsFixture(t, withPolicy(p))
	f2.seq.ClaimRewards(context.Background(), snap2, false)
	assert.Equal(t, []string{"withdrawRewards:10", "withdrawRewards:11"}, f2.ledger.SentKeys())
}

func TestStakeExcludesStakedFreeMint(t *testing.T) {
	inv := []InventoryEntry{
		{CatalogID: FreeMintID, Name: "Free Miner", Quantity: big.NewInt(1)},
		{CatalogID: 2, Name: "Basic Miner", Quantity: big.NewInt(3)},
	}

	f := newFixture(t)
	res := f.seq.Stake(context.Background(), inv, true)
	assert.Equal(t, StakeResult{Staked: 1, Skipped: 1}, res)
	assert.Equal(t, []string{"stake:2"}, f.ledger.SentKeys())

	f = newFixture(t)
	f.seq.Stake(context.Background(), inv, false)
	assert.Equal(t, []string{"stake:1", "stake:2"}, f.ledger.SentKeys())
}

func TestStakeContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.ledger.Fail["stake:2"] = errors.New("execution reverted")
	inv := []InventoryEntry{
		{CatalogID: 2, Name: "Basic Miner", Quantity: big.NewInt(3)},
		{CatalogID: 3, Name: "Pro Miner", Quantity: big.NewInt(1)},
	}

	res := f.seq.Stake(context.Background(), inv, false)
	assert.Equal(t, StakeResult{Staked: 1, Failed: 1}, res)
	assert.Equal(t, []string{"stake:3"}, f.ledger.SentKeys())
}

func buyFixture(t *testing.T, pct int64, opts ...fixtureOption) (*fixture, *Snapshot) {
	t.Helper()
	p := Policy{ClaimMinPerPosition: decimal.NewFromInt(50), DonationPercentage: decimal.NewFromInt(pct)}
	f := newFixture(t, append([]fixtureOption{withPolicy(p)}, opts...)...)
	f.ledger.Token[testWallet] = tokens("250")
	f.ledger.List(7, 2, tokens("37.5"), f.b.Token.Address)
	snap, err := f.agg.Refresh(context.Background(), f.sess, RefreshOptions{})
	require.NoError(t, err)
	return f, snap
}

func TestBuyWithoutDonation(t *testing.T) {
	f, snap := buyFixture(t, 0)

	res, err := f.seq.Buy(context.Background(), snap, 2, snap.Wallet.Primary, false)
	require.NoError(t, err)
	assertWei(t, big.NewInt(6), res.Plan.Quantity)
	assert.False(t, res.Donated)
	assert.Equal(t, []string{"approve", "buy"}, f.methods())

	buy := f.ledger.Sent[1]
	assertWei(t, big.NewInt(7), buy.Args[0].(*big.Int))
	assert.Equal(t, testWallet, buy.Args[1])
	assertWei(t, big.NewInt(6), buy.Args[2].(*big.Int))
	assertWei(t, tokens("225"), buy.Args[4].(*big.Int))
	assertWei(t, tokens("225"), f.ledger.Allowance[f.b.Market.Address])
	assertWei(t, big.NewInt(6), f.ledger.Items[2])
	assertWei(t, tokens("25"), f.ledger.Token[testWallet])
}

func TestBuyWithDonationTransfer(t *testing.T) {
	f, snap := buyFixture(t, 10)

	res, err := f.seq.Buy(context.Background(), snap, 2, snap.Wallet.Primary, false)
	require.NoError(t, err)
	assert.True(t, res.Donated)
	assert.Equal(t, []string{"approve", "buy", "transfer"}, f.methods())
	assertWei(t, tokens("22.5"), f.ledger.Token[testDonation])
	assertWei(t, tokens("2.5"), f.ledger.Token[testWallet])
}

func TestBuyWithDonationMultiSend(t *testing.T) {
	f, snap := buyFixture(t, 10, withStrategy(MultiSendDonation{}))

	_, err := f.seq.Buy(context.Background(), snap, 2, snap.Wallet.Primary, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "buy", "approve", "multisendToken"}, f.methods())
	assertWei(t, tokens("22.5"), f.ledger.Allowance[f.b.MultiSend.Address])
	assertWei(t, tokens("22.5"), f.ledger.Token[testDonation])
}

func TestBuyDonationFailureKeepsPurchase(t *testing.T) {
	f, snap := buyFixture(t, 10)
	f.ledger.Fail["transfer"] = errors.New("execution reverted")

	res, err := f.seq.Buy(context.Background(), snap, 2, snap.Wallet.Primary, false)
	require.NoError(t, err)
	assert.False(t, res.Donated)
	assert.Equal(t, []string{"approve", "buy"}, f.methods())
	assert.Len(t, f.rep.failures, 1)
}

func TestBuyRejections(t *testing.T) {
	t.Run("no listing", func(t *testing.T) {
		f, snap := buyFixture(t, 0)
		_, err := f.seq.Buy(context.Background(), snap, 3, snap.Wallet.Primary, false)
		require.ErrorIs(t, err, ErrNoListing)
		assert.Zero(t, f.ledger.Writes())
	})

	t.Run("not affordable", func(t *testing.T) {
		f, snap := buyFixture(t, 0)
		_, err := f.seq.Buy(context.Background(), snap, 2, tokens("30"), false)
		require.ErrorIs(t, err, ErrNotAffordable)
		assert.Zero(t, f.ledger.Writes())
		assert.Len(t, f.rep.warnings(), 1)
	})

	t.Run("not affordable silent", func(t *testing.T) {
		f, snap := buyFixture(t, 0)
		_, err := f.seq.Buy(context.Background(), snap, 2, tokens("30"), true)
		require.ErrorIs(t, err, ErrNotAffordable)
		assert.Empty(t, f.rep.warnings())
	})
}

func TestDonateValidation(t *testing.T) {
	for _, tt := range []struct {
		amount string
		want   error
	}{
		{"0", ErrInvalidAmount},
		{"-5", ErrInvalidAmount},
		{"0.0000000000000000001", ErrInvalidAmount},
		{"10.5", ErrInsufficientBalance},
	} {
		t.Run(tt.amount, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.seq.Donate(context.Background(), dec(tt.amount), tokens("10"))
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.ledger.Writes())
		})
	}
}

func TestDonateTransfers(t *testing.T) {
	f := newFixture(t)
	f.ledger.Token[testWallet] = tokens("10")

	res, err := f.seq.Donate(context.Background(), dec("10"), tokens("10"))
	require.NoError(t, err)
	assert.Equal(t, TxConfirmed, res.State)
	require.Len(t, f.ledger.Sent, 1)
	assert.Equal(t, "transfer", f.ledger.Sent[0].Method)
	assert.Equal(t, testDonation, f.ledger.Sent[0].Args[0])
	assertWei(t, tokens("10"), f.ledger.Token[testDonation])
}

func TestParseDonationAmount(t *testing.T) {
	d, err := ParseDonationAmount(" 12.5 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec("12.5")))

	for _, in := range []string{"", "abc", "0", "-5"} {
		_, err := ParseDonationAmount(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestDonationStrategyByName(t *testing.T) {
	s, err := DonationStrategyByName("multisend")
	require.NoError(t, err)
	assert.Equal(t, "multisend", s.Name())

	s, err = DonationStrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, "transfer", s.Name())

	_, err = DonationStrategyByName("airdrop")
	assert.Error(t, err)
}

func TestMultiSendDonationNeedsHelper(t *testing.T) {
	_, err := MultiSendDonation{}.Calls(Bindings{}, common.Address{}, big.NewInt(1))
	assert.Error(t, err)
}
