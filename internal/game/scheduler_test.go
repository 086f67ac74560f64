package game

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerOnce(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler([]*Runner{f.runner}, SchedulerOptions{Once: true}, f.rep, nil)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, f.rep.cycles())
	assert.Zero(t, f.rep.actions)
}

func TestSchedulerRejectsWhileBusy(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler([]*Runner{f.runner}, SchedulerOptions{}, f.rep, nil)

	s.busy.Store(true)
	assert.ErrorIs(t, s.Submit(Command{Kind: CmdClaim}), ErrCycleInProgress)
	s.busy.Store(false)

	require.True(t, f.sess.TryBegin())
	assert.ErrorIs(t, s.Submit(Command{Kind: CmdStake}), ErrCycleInProgress)
	assert.NoError(t, s.Submit(Command{Kind: CmdQuit}), "quit is always accepted")
	assert.NoError(t, s.Submit(Command{Kind: CmdQuit}))
	f.sess.End()

	require.NoError(t, s.Submit(Command{Kind: CmdStake}))
	assert.ErrorIs(t, s.Submit(Command{Kind: CmdStake}), ErrCycleInProgress, "one command queued at a time")
}

func TestSchedulerRunsCommandsUntilQuit(t *testing.T) {
	f := newFixture(t)
	f.ledger.Items[2] = big.NewInt(2)
	s := NewScheduler([]*Runner{f.runner}, SchedulerOptions{Interval: time.Hour, Interactive: true}, f.rep, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return f.rep.cycles() == 1 && !s.Busy() }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Submit(Command{Kind: CmdStake}))
	require.Eventually(t, func() bool { return len(f.ledger.SentKeys()) == 1 && !s.Busy() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"stake:2"}, f.ledger.SentKeys())

	require.NoError(t, s.Submit(Command{Kind: CmdQuit}))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, f.rep.cycles(), "quit does not run another cycle")
}

func TestSchedulerCommandTargetsNetwork(t *testing.T) {
	f := newFixture(t)
	f.ledger.Items[2] = big.NewInt(1)
	s := NewScheduler([]*Runner{f.runner}, SchedulerOptions{}, f.rep, nil)

	s.runCommand(context.Background(), Command{Kind: CmdStake, Network: "ALT"})
	assert.Zero(t, f.ledger.Writes())

	s.runCommand(context.Background(), Command{Kind: CmdStake, Network: "MATIC"})
	assert.Equal(t, []string{"stake:2"}, f.ledger.SentKeys())
}

func TestSchedulerDonatesOnFirstNetworkOnly(t *testing.T) {
	matic := newFixture(t)
	alt := newFixture(t, withNetwork("ALT"))
	matic.ledger.Token[testWallet] = tokens("20")
	alt.ledger.Token[testWallet] = tokens("20")
	s := NewScheduler([]*Runner{matic.runner, alt.runner}, SchedulerOptions{}, matic.rep, nil)

	s.runCommand(context.Background(), Command{Kind: CmdDonate, Amount: dec("5")})

	assert.Equal(t, 1, matic.ledger.Writes())
	assertWei(t, tokens("5"), matic.ledger.Token[testDonation])
	assert.Zero(t, alt.ledger.Writes())

	s.runCommand(context.Background(), Command{Kind: CmdDonate, Network: "ALT", Amount: dec("2")})
	assert.Equal(t, 1, alt.ledger.Writes())
	assertWei(t, tokens("2"), alt.ledger.Token[testDonation])
}

func TestSchedulerTimerCycles(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler([]*Runner{f.runner}, SchedulerOptions{Interval: 10 * time.Millisecond}, f.rep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return f.rep.cycles() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "donate", CmdDonate.String())
	assert.Equal(t, "unknown", CommandKind(42).String())
}
