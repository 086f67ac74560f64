package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CommandKind int

const (
	CmdRefresh CommandKind = iota
	CmdClaim
	CmdBuy
	CmdStake
	CmdDonate
	CmdQuit
)

func (k CommandKind) String() string {
	switch k {
	case CmdRefresh:
		return "refresh"
	case CmdClaim:
		return "claim"
	case CmdBuy:
		return "buy"
	case CmdStake:
		return "stake"
	case CmdDonate:
		return "donate"
	case CmdQuit:
		return "quit"
	}
	return "unknown"
}

// Command is a user request delivered to the scheduler goroutine. An empty
// Network targets every tracked network.
type Command struct {
	Kind      CommandKind
	Network   string
	CatalogID uint64
	Amount    decimal.Decimal
}

type SchedulerOptions struct {
	Interval    time.Duration
	Once        bool // run one cycle and return
	Interactive bool // print the key menu after each cycle
}

// Scheduler runs cycles for every network on a timer and executes commands
// in between, all on the goroutine that called Run.
type Scheduler struct {
	runners  []*Runner
	opts     SchedulerOptions
	reporter Reporter
	log      *zap.Logger

	busy     atomic.Bool
	cmds     chan Command
	quit     chan struct{}
	quitOnce sync.Once
}

func NewScheduler(runners []*Runner, opts SchedulerOptions, reporter Reporter, log *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runners:  runners,
		opts:     opts,
		reporter: reporter,
		log:      log,
		cmds:     make(chan Command, 1),
		quit:     make(chan struct{}),
	}
}

// Busy reports whether a cycle or command is executing.
func (s *Scheduler) Busy() bool {
	if s.busy.Load() {
		return true
	}
	for _, r := range s.runners {
		if r.Session().Busy() {
			return true
		}
	}
	return false
}

// Submit queues cmd. Quit is always accepted; anything else is rejected with
// ErrCycleInProgress while work is running or another command is queued.
func (s *Scheduler) Submit(cmd Command) error {
	if cmd.Kind == CmdQuit {
		s.quitOnce.Do(func() { close(s.quit) })
		return nil
	}
	if s.Busy() {
		return ErrCycleInProgress
	}
	select {
	case s.cmds <- cmd:
		return nil
	default:
		return ErrCycleInProgress
	}
}

// Run executes the first cycle at once, then one per interval until ctx is
// done or quit is submitted. The timer is stopped while work runs and
// re-armed only after it completes.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runCycle(ctx)
	if s.opts.Once {
		return nil
	}

	timer := time.NewTimer(s.opts.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			s.log.Info("quit requested")
			return nil
		case <-timer.C:
			s.runCycle(ctx)
		case cmd := <-s.cmds:
			timer.Stop()
			s.runCommand(ctx, cmd)
		}
		timer.Reset(s.opts.Interval)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.busy.Store(true)
	defer s.busy.Store(false)

	log := s.log.With(zap.String("cycle_id", uuid.NewString()))
	start := time.Now()
	failed := 0
	for _, r := range s.runners {
		if err := r.Cycle(ctx); err != nil {
			failed++
			log.Warn("cycle failed", zap.String("network", r.Network()), zap.Error(err))
		}
	}
	log.Info("cycle finished", zap.Int("networks", len(s.runners)), zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)))
	if s.opts.Interactive {
		s.reporter.Actions()
	}
}

func (s *Scheduler) runCommand(ctx context.Context, cmd Command) {
	if cmd.Kind == CmdRefresh {
		s.runCycle(ctx)
		return
	}

	s.busy.Store(true)
	defer s.busy.Store(false)

	// a donation is one transfer, never one per network
	if cmd.Kind == CmdDonate && cmd.Network == "" && len(s.runners) > 0 {
		cmd.Network = s.runners[0].Network()
	}

	log := s.log.With(zap.String("cycle_id", uuid.NewString()), zap.Stringer("command", cmd.Kind))
	for _, r := range s.runners {
		if cmd.Network != "" && cmd.Network != r.Network() {
			continue
		}
		var err error
		switch cmd.Kind {
		case CmdClaim:
			_, err = r.Claim(ctx)
		case CmdBuy:
			err = r.Buy(ctx, cmd.CatalogID)
		case CmdStake:
			_, err = r.Stake(ctx)
		case CmdDonate:
			err = r.Donate(ctx, cmd.Amount)
		}
		if err != nil {
			log.Warn("command failed", zap.String("network", r.Network()), zap.Error(err))
		}
	}
	if s.opts.Interactive {
		s.reporter.Actions()
	}
}
