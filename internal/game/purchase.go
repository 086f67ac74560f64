package game

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PurchasePlan is how many units a balance buys from one listing.
type PurchasePlan struct {
	PricePerUnit *big.Int
	Surcharge    *big.Int // donation per unit
	Quantity     *big.Int
	Total        *big.Int // paid to the market: price * quantity
	Donation     *big.Int // surcharge * quantity
}

func (p PurchasePlan) Affordable() bool { return p.Quantity.Sign() > 0 }

// PlanPurchase spends as much of balance as divides into whole units of
// price plus the per-unit donation surcharge.
func PlanPurchase(balance, price *big.Int, donationPct decimal.Decimal) PurchasePlan {
	surcharge := new(big.Int)
	if donationPct.IsPositive() {
		surcharge = decimal.NewFromBigInt(price, 0).Mul(donationPct).Div(decimal.NewFromInt(100)).Floor().BigInt()
	}
	unit := new(big.Int).Add(price, surcharge)
	qty := new(big.Int)
	if unit.Sign() > 0 && balance.Sign() > 0 {
		qty.Quo(balance, unit)
	}
	return PurchasePlan{
		PricePerUnit: new(big.Int).Set(price),
		Surcharge:    surcharge,
		Quantity:     qty,
		Total:        new(big.Int).Mul(price, qty),
		Donation:     new(big.Int).Mul(surcharge, qty),
	}
}

// cheapestListing picks the lowest price for id, lowest slot on ties.
func cheapestListing(listings []MarketListing, id uint64) (MarketListing, bool) {
	var (
		best  MarketListing
		found bool
	)
	for _, l := range listings {
		if l.CatalogID != id {
			continue
		}
		if !found || l.PricePerUnit.Cmp(best.PricePerUnit) < 0 {
			best, found = l, true
		}
	}
	return best, found
}
