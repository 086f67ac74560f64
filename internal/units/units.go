// Package units converts between on-chain 18-decimal integers and
// human token amounts.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals of the game token and of the native gas token.
const Decimals = 18

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ToWei truncates sub-wei precision.
func ToWei(d decimal.Decimal) *big.Int {
	return d.Shift(Decimals).Truncate(0).BigInt()
}

func FromWei(x *big.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x, -Decimals)
}

// Tokens returns whole tokens as wei, e.g. Tokens(50) == 50e18.
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerToken)
}

// Format renders a wei amount with a fixed number of fraction digits.
func Format(x *big.Int, places int32) string {
	if x == nil {
		return decimal.Zero.StringFixed(places)
	}
	return FromWei(x).StringFixed(places)
}

// Parse reads a user supplied token amount ("12", "0.5", " 3.25 ").
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
