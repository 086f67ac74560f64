package game

import (
	"math/big"
	"time"

	"github.com/MartinGerritsen/mining.game.bot/internal/price"
)

// View is everything the terminal report shows for one network.
type View struct {
	Snapshot  *Snapshot
	Decision  Decision
	Policy    Policy
	Quote     *price.Quote // nil when the price feed failed
	Donations DonationTally
	GasSymbol string
	Tracking  bool // donation wallet tracked
}

// Reporter renders user facing output.
type Reporter interface {
	Snapshot(v View)
	Infof(network, format string, args ...any)
	Warnf(network, format string, args ...any)
	Successf(network, format string, args ...any)
	Failure(network, what string, err error)
	Donation(network string, received, sessionTotal *big.Int)
	CycleDone(network string, at time.Time)
	Actions()
}

// Observer receives metrics events. Methods must not block.
type Observer interface {
	SnapshotTaken(s *Snapshot)
	TxFinished(network, method string, state TxState)
	CycleFinished(network string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) SnapshotTaken(*Snapshot)                   {}
func (nopObserver) TxFinished(string, string, TxState)         {}
func (nopObserver) CycleFinished(string, time.Duration, error) {}
