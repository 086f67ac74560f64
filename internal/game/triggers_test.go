package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func snapWithPending(amounts ...string) *Snapshot {
	s := &Snapshot{}
	for i, a := range amounts {
		s.Positions = append(s.Positions, StakingPosition{CatalogID: uint64(i + 2), Pending: tokens(a)})
	}
	return s
}

func TestEvaluateClaimThresholdIsStrict(t *testing.T) {
	p := Policy{ClaimTrigger: decimal.NewFromInt(100)}

	at := Evaluate(snapWithPending("60", "40"), p)
	assert.False(t, at.ShouldClaim)
	assert.InDelta(t, 100.0, at.ClaimProgress, 1e-9)
	assertWei(t, tokens("100"), at.TotalPending)

	over := Evaluate(snapWithPending("60", "40.01"), p)
	assert.True(t, over.ShouldClaim)
}

func TestEvaluateWithoutTrigger(t *testing.T) {
	d := Evaluate(snapWithPending("1000"), Policy{AutoBuyID: 3})
	assert.False(t, d.ShouldClaim)
	assert.Zero(t, d.ClaimProgress)
	assert.Equal(t, uint64(3), d.BuyCatalogID)
}

func TestEvaluateProgress(t *testing.T) {
	d := Evaluate(snapWithPending("25"), Policy{ClaimTrigger: decimal.NewFromInt(200)})
	assert.False(t, d.ShouldClaim)
	assert.InDelta(t, 12.5, d.ClaimProgress, 1e-9)
	assert.Zero(t, d.BuyCatalogID)
}
