package game

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPlanPurchase(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		price    string
		pct      int64
		qty      int64
		total    string
		donation string
	}{
		{name: "no donation", balance: "250", price: "37.5", qty: 6, total: "225", donation: "0"},
		{name: "ten percent", balance: "250", price: "37.5", pct: 10, qty: 6, total: "225", donation: "22.5"},
		{name: "surcharge drops a unit", balance: "80", price: "40", pct: 5, qty: 1, total: "40", donation: "2"},
		{name: "exact", balance: "80", price: "40", qty: 2, total: "80", donation: "0"},
		{name: "too poor", balance: "30", price: "37.5", qty: 0, total: "0", donation: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanPurchase(tokens(tt.balance), tokens(tt.price), decimal.NewFromInt(tt.pct))
			assertWei(t, big.NewInt(tt.qty), plan.Quantity)
			assertWei(t, tokens(tt.total), plan.Total)
			assertWei(t, tokens(tt.donation), plan.Donation)
			assert.Equal(t, tt.qty > 0, plan.Affordable())
		})
	}
}

func TestPlanPurchaseFloorsSurcharge(t *testing.T) {
	plan := PlanPurchase(big.NewInt(1000), big.NewInt(7), decimal.NewFromInt(10))
	assertWei(t, big.NewInt(0), plan.Surcharge)
	assertWei(t, big.NewInt(142), plan.Quantity)
}

func TestCheapestListing(t *testing.T) {
	listings := []MarketListing{
		{Slot: 0, CatalogID: 2, PricePerUnit: tokens("40")},
		{Slot: 1, CatalogID: 3, PricePerUnit: tokens("1")},
		{Slot: 2, CatalogID: 2, PricePerUnit: tokens("35")},
		{Slot: 3, CatalogID: 2, PricePerUnit: tokens("35")},
	}
	l, ok := cheapestListing(listings, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), l.Slot)

	_, ok = cheapestListing(listings, 9)
	assert.False(t, ok)
}
