package game

import (
	"sync"
	"sync/atomic"
)

// Session is the per-network state carried across cycles: the last committed
// snapshot, the donation tally and the cycle-in-progress flag.
type Session struct {
	Network string

	busy atomic.Bool

	mu        sync.RWMutex
	snap      *Snapshot
	donations DonationTally
}

func NewSession(network string) *Session { return &Session{Network: network} }

// TryBegin claims the session for one cycle or command. False means another
// one holds it.
func (s *Session) TryBegin() bool { return s.busy.CompareAndSwap(false, true) }

func (s *Session) End() { s.busy.Store(false) }

func (s *Session) Busy() bool { return s.busy.Load() }

// Snapshot returns the last committed snapshot, nil before the first refresh.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Session) Donations() DonationTally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.donations
}

func (s *Session) commit(snap *Snapshot, tally DonationTally) {
	s.mu.Lock()
	s.snap = snap
	s.donations = tally
	s.mu.Unlock()
}
