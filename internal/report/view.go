package report

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MartinGerritsen/mining.game.bot/internal/game"
	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

// TokenSymbol is the game's reward token.
const TokenSymbol = "WATT"

const barWidth = 24

func renderView(v game.View, s styles) string {
	snap := v.Snapshot
	lines := []string{
		lipgloss.JoinHorizontal(lipgloss.Top,
			s.title.Render("mining.game"), " ", s.network.Render(snap.Network)),
		s.header.Render(fmt.Sprintf("snapshot %s", snap.TakenAt.Format("15:04:05"))),
	}

	panels := []string{
		s.box.Render(renderInventory(snap, s)),
		s.box.Render(renderStaking(v, s)),
		s.box.Render(renderWallet(v, s)),
	}
	if v.Tracking && snap.Wallet.DonationPrimary != nil {
		panels = append(panels, s.box.Render(renderDonations(v, s)))
	}
	lines = append(lines, panels...)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderInventory(snap *game.Snapshot, s styles) string {
	lines := []string{s.title.Render("Inventory")}
	if len(snap.Inventory) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, s.empty.Render("No items in wallet."))...)
	}
	for _, it := range snap.Inventory {
		lines = append(lines, row(s, it.Name, "x"+it.Quantity.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderStaking(v game.View, s styles) string {
	snap := v.Snapshot
	lines := []string{s.title.Render("Staking")}
	if len(snap.Positions) == 0 {
		lines = append(lines, s.empty.Render("Nothing staked."))
	}
	for _, p := range snap.Positions {
		lines = append(lines, row(s, fmt.Sprintf("%s (%s)", p.Name, p.Staked), units.Format(p.Pending, 2)))
	}

	total := snap.TotalPending()
	pending := units.Format(total, 2) + " " + TokenSymbol
	if v.Quote != nil {
		usd := units.FromWei(total).Mul(v.Quote.USD)
		pending += fmt.Sprintf(" (~$%s)", usd.StringFixed(2))
	}
	lines = append(lines, row(s, "Pending", pending))

	if v.Policy.ClaimTrigger.IsPositive() {
		pct := clampPercent(v.Decision.ClaimProgress)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			s.key.Render("Claim at "+v.Policy.ClaimTrigger.String()+" "),
			renderProgressBar(pct, barWidth, s),
			s.value.Render(fmt.Sprintf(" %3.0f%%", pct)),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderWallet(v game.View, s styles) string {
	w := v.Snapshot.Wallet
	lines := []string{
		s.title.Render("Wallet"),
		row(s, TokenSymbol, units.Format(w.Primary, 2)),
		row(s, gasSymbol(v), units.Format(w.Gas, 4)),
	}
	if v.Quote != nil {
		lines = append(lines, row(s, TokenSymbol+"/USD", priceLine(v.Quote.USD, v.Quote.Change24h)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderDonations(v game.View, s styles) string {
	w := v.Snapshot.Wallet
	total := v.Donations.SessionTotal
	if total == nil {
		total = new(big.Int)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render("Donation wallet"),
		row(s, TokenSymbol, units.Format(w.DonationPrimary, 2)),
		row(s, gasSymbol(v), units.Format(w.DonationGas, 4)),
		row(s, "This session", units.Format(total, 2)),
	)
}

func row(s styles, key, value string) string {
	return s.key.Render(fmt.Sprintf("%-22s", key)) + s.value.Render(value)
}

func gasSymbol(v game.View) string {
	if v.GasSymbol == "" {
		return "GAS"
	}
	return v.GasSymbol
}

func priceLine(usd, change decimal.Decimal) string {
	sign := ""
	if change.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("$%s (%s%s%% 24h)", usd.StringFixed(4), sign, change.StringFixed(2))
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	if filled > width {
		filled = width
	}
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
