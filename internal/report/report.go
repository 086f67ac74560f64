// Package report renders bot output for a terminal.
package report

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/MartinGerritsen/mining.game.bot/internal/chain"
	"github.com/MartinGerritsen/mining.game.bot/internal/game"
	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

// Terminal writes styled lines to w. It is safe for concurrent use.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
	s  styles
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, s: newStyles()}
}

var _ game.Reporter = (*Terminal)(nil)

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

func (t *Terminal) prefix(network string) string {
	return t.s.network.Render("[" + network + "]")
}

func (t *Terminal) Snapshot(v game.View) {
	if v.Snapshot == nil {
		return
	}
	t.println(renderView(v, t.s))
}

func (t *Terminal) Infof(network, format string, args ...any) {
	t.println(t.prefix(network) + " " + t.s.info.Render(fmt.Sprintf(format, args...)))
}

func (t *Terminal) Warnf(network, format string, args ...any) {
	t.println(t.prefix(network) + " " + t.s.warning.Render(fmt.Sprintf(format, args...)))
}

func (t *Terminal) Successf(network, format string, args ...any) {
	t.println(t.prefix(network) + " " + t.s.success.Render(fmt.Sprintf(format, args...)))
}

// Failure prints what failed with a short error class, the pipeline state
// for transactions and the revert reason when there is one.
func (t *Terminal) Failure(network, what string, err error) {
	msg := fmt.Sprintf("%s failed [%s]", what, chain.Classify(err))
	var txErr *game.TxError
	if errors.As(err, &txErr) {
		msg += fmt.Sprintf(" after %s: %s", txErr.Reached, chain.RevertReason(txErr.Err))
	} else {
		msg += ": " + chain.RevertReason(err)
	}
	t.println(t.prefix(network) + " " + t.s.failure.Render(msg))
}

func (t *Terminal) Donation(network string, received, sessionTotal *big.Int) {
	t.println(t.prefix(network) + " " + t.s.donation.Render(fmt.Sprintf(
		"Donation received: %s %s (session total %s).",
		units.Format(received, 2), TokenSymbol, units.Format(sessionTotal, 2))))
}

func (t *Terminal) CycleDone(network string, at time.Time) {
	t.println(t.prefix(network) + " " + t.s.stamp.Render("Updated at "+at.Format("2006-01-02 15:04:05")))
}

func (t *Terminal) Actions() {
	t.println(t.s.help.Render("[r] refresh  [c] claim  [b] buy  [s] stake  [d] donate  [q] quit"))
}
