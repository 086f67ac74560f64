package game

import (
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/MartinGerritsen/mining.game.bot/internal/catalog"
	"github.com/MartinGerritsen/mining.game.bot/internal/contracts/contractstest"
	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

var (
	testWallet   = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	testDonation = common.HexToAddress("0x00000000000000000000000000000000000000d0")
)

// recorder is a Reporter that keeps everything it is told.
type recorder struct {
	mu        sync.Mutex
	lines     []string
	failures  []error
	views     []View
	donations []*big.Int
	done      int
	actions   int
}

func (r *recorder) add(kind, network, format string, args ...any) {
	r.mu.Lock()
	r.lines = append(r.lines, kind+" "+network+": "+fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) Snapshot(v View) {
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
}
func (r *recorder) Infof(n, f string, a ...any)    { r.add("info", n, f, a...) }
func (r *recorder) Warnf(n, f string, a ...any)    { r.add("warn", n, f, a...) }
func (r *recorder) Successf(n, f string, a ...any) { r.add("ok", n, f, a...) }
func (r *recorder) Failure(n, what string, err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
	r.add("fail", n, "%s: %v", what, err)
}
func (r *recorder) Donation(_ string, received, _ *big.Int) {
	r.mu.Lock()
	r.donations = append(r.donations, received)
	r.mu.Unlock()
}
func (r *recorder) CycleDone(string, time.Time) {
	r.mu.Lock()
	r.done++
	r.mu.Unlock()
}
func (r *recorder) Actions() {
	r.mu.Lock()
	r.actions++
	r.mu.Unlock()
}

func (r *recorder) warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if len(l) > 4 && l[:4] == "warn" {
			out = append(out, l)
		}
	}
	return out
}

type fixture struct {
	ledger *contractstest.Ledger
	b      Bindings
	sess   *Session
	agg    *Aggregator
	seq    *Sequencer
	rep    *recorder
	runner *Runner
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy   Policy
	agg      AggregatorOptions
	tx       TxOptions
	strategy DonationStrategy
	items    []string
	network  string
}

func withPolicy(p Policy) fixtureOption { return func(c *fixtureConfig) { c.policy = p } }

func withItems(names ...string) fixtureOption { return func(c *fixtureConfig) { c.items = names } }

func withAggregator(o AggregatorOptions) fixtureOption {
	return func(c *fixtureConfig) { c.agg = o }
}

func withTx(o TxOptions) fixtureOption { return func(c *fixtureConfig) { c.tx = o } }

func withNetwork(name string) fixtureOption { return func(c *fixtureConfig) { c.network = name } }

func withStrategy(s DonationStrategy) fixtureOption {
	return func(c *fixtureConfig) { c.strategy = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		policy:  Policy{ClaimMinPerPosition: decimal.NewFromInt(50)},
		items:   []string{"Free Miner", "Basic Miner", "Pro Miner"},
		network: "MATIC",
	}
	for _, o := range opts {
		o(&cfg)
	}

	addrs := contractstest.DefaultAddresses()
	ledger := contractstest.New(testWallet, addrs)
	ledger.Approved = true

	var items []catalog.Item
	for i, name := range cfg.items {
		items = append(items, catalog.Item{ID: uint64(i + 1), Name: name})
	}

	b := Bind(ledger, Addresses{
		Token:     addrs.Token,
		Items:     addrs.Items,
		Staking:   addrs.Staking,
		Market:    addrs.Market,
		MultiSend: addrs.MultiSend,
	})
	rep := &recorder{}
	log := zap.NewNop()
	seq := NewSequencer(SequencerConfig{
		Network:         cfg.network,
		Ledger:          ledger,
		Bindings:        b,
		Policy:          cfg.policy,
		Donation:        cfg.strategy,
		DonationAddress: testDonation,
		Options:         cfg.tx,
		Reporter:        rep,
		Logger:          log,
	})
	if cfg.agg.DonationAddress == (common.Address{}) {
		cfg.agg.DonationAddress = testDonation
	}
	agg := NewAggregator(ledger, b, catalog.NewStaticCache(items), seq, cfg.agg, nil, log)
	sess := NewSession(cfg.network)
	runner := NewRunner(RunnerConfig{Network: cfg.network, GasSymbol: "MATIC", Policy: cfg.policy}, RunnerDeps{
		Session:    sess,
		Aggregator: agg,
		Sequencer:  seq,
		Bindings:   b,
		Reporter:   rep,
		Logger:     log,
	})
	return &fixture{ledger: ledger, b: b, sess: sess, agg: agg, seq: seq, rep: rep, runner: runner}
}

func tokens(s string) *big.Int { return units.ToWei(decimal.RequireFromString(s)) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (r *recorder) cycles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// methods lists the method of every broadcast transaction in order.
func (f *fixture) methods() []string {
	var out []string
	for _, s := range f.ledger.Sent {
		out = append(out, s.Method)
	}
	return out
}

// assertWei compares amounts by value.
func assertWei(t *testing.T, want, got *big.Int, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want.String(), got.String(), msgAndArgs...)
}
