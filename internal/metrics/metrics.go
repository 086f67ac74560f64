// Package metrics exposes bot activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MartinGerritsen/mining.game.bot/internal/game"
	"github.com/MartinGerritsen/mining.game.bot/internal/units"
)

const namespace = "minebot"

// Collectors implements game.Observer.
type Collectors struct {
	snapshots     *prometheus.CounterVec
	pending       *prometheus.GaugeVec
	balance       *prometheus.GaugeVec
	positions     *prometheus.GaugeVec
	txs           *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	cycleErrors   *prometheus.CounterVec
}

var _ game.Observer = (*Collectors)(nil)

func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "snapshots_total", Help: "Completed state refreshes.",
		}, []string{"network"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_rewards_tokens", Help: "Unclaimed staking rewards.",
		}, []string{"network"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "wallet_balance_tokens", Help: "Wallet balances by asset.",
		}, []string{"network", "wallet", "asset"}),
		positions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "staking_positions", Help: "Open staking positions.",
		}, []string{"network"}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_total", Help: "Transactions by method and final state.",
		}, []string{"network", "method", "state"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds", Help: "Wall time of a cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"network"}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycle_errors_total", Help: "Cycles that ended with an error.",
		}, []string{"network"}),
	}
	for _, col := range []prometheus.Collector{c.snapshots, c.pending, c.balance, c.positions, c.txs, c.cycleDuration, c.cycleErrors} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) SnapshotTaken(s *game.Snapshot) {
	c.snapshots.WithLabelValues(s.Network).Inc()
	c.pending.WithLabelValues(s.Network).Set(units.FromWei(s.TotalPending()).InexactFloat64())
	c.positions.WithLabelValues(s.Network).Set(float64(len(s.Positions)))
	c.balance.WithLabelValues(s.Network, "operator", "token").Set(units.FromWei(s.Wallet.Primary).InexactFloat64())
	c.balance.WithLabelValues(s.Network, "operator", "gas").Set(units.FromWei(s.Wallet.Gas).InexactFloat64())
	if s.Wallet.DonationPrimary != nil {
		c.balance.WithLabelValues(s.Network, "donation", "token").Set(units.FromWei(s.Wallet.DonationPrimary).InexactFloat64())
		c.balance.WithLabelValues(s.Network, "donation", "gas").Set(units.FromWei(s.Wallet.DonationGas).InexactFloat64())
	}
}

func (c *Collectors) TxFinished(network, method string, state game.TxState) {
	c.txs.WithLabelValues(network, method, state.String()).Inc()
}

func (c *Collectors) CycleFinished(network string, took time.Duration, err error) {
	c.cycleDuration.WithLabelValues(network).Observe(took.Seconds())
	if err != nil {
		c.cycleErrors.WithLabelValues(network).Inc()
	}
}

// Routes serves /metrics from g and a liveness probe on /healthz.
func Routes(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}
