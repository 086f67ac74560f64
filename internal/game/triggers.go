package game

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

// Policy holds the claim, buy and donation rules. Amounts are whole tokens.
type Policy struct {
	ClaimTrigger        decimal.Decimal // zero disables auto-claim
	ClaimMinPerPosition decimal.Decimal
	AutoBuyID           uint64 // zero disables auto-buy
	AutoGroup           bool   // claim the auto-buy item by unstaking it
	DonationPercentage  decimal.Decimal
}

// Decision is what a cycle should do after a refresh.
type Decision struct {
	ShouldClaim   bool
	TotalPending  *big.Int
	ClaimProgress float64 // percent of the trigger reached
	BuyCatalogID  uint64  // zero: no buy
}

// Evaluate applies p to snap. Affordability is left to the buy itself.
func Evaluate(snap *Snapshot, p Policy) Decision {
	total := snap.TotalPending()
	d := Decision{TotalPending: total, BuyCatalogID: p.AutoBuyID}
	if !p.ClaimTrigger.IsPositive() {
		return d
	}
	d.ShouldClaim = total.Cmp(units.ToWei(p.ClaimTrigger)) > 0
	d.ClaimProgress = units.FromWei(total).Div(p.ClaimTrigger).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return d
}
