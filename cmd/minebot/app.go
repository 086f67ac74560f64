package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MartinGerritsen/mining.game.bot/internal/catalog"
	"github.com/MartinGerritsen/mining.game.bot/internal/chain"
	"github.com/MartinGerritsen/mining.game.bot/internal/config"
	"github.com/MartinGerritsen/mining.game.bot/internal/game"
	"github.com/MartinGerritsen/mining.game.bot/internal/metrics"
	"github.com/MartinGerritsen/mining.game.bot/internal/price"
	"github.com/MartinGerritsen/mining.game.bot/internal/report"
)

// app holds everything a command needs once the chain is reachable.
type app struct {
	settings config.Settings
	log      *zap.Logger
	reporter *report.Terminal
	runners  []*game.Runner
	registry *prometheus.Registry // nil without METRICS_ADDR
	clients  []*chain.Client
}

func loadSettings(v *viper.Viper) (config.Settings, *zap.Logger, error) {
	st, err := config.Load(v)
	if err != nil {
		return st, nil, fmt.Errorf("config: %w", err)
	}
	if err := st.Validate(); err != nil {
		return st, nil, fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(st.LogLevel, st.LogFile)
	if err != nil {
		return st, nil, fmt.Errorf("logger: %w", err)
	}
	return st, log, nil
}

func wireApp(ctx context.Context, v *viper.Viper, out io.Writer) (*app, error) {
	st, log, err := loadSettings(v)
	if err != nil {
		return nil, err
	}
	a := &app{settings: st, log: log, reporter: report.NewTerminal(out)}

	var observer game.Observer
	if st.MetricsAddr != "" {
		a.registry = prometheus.NewRegistry()
		c, err := metrics.New(a.registry)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		observer = c
	}

	strategy, err := game.DonationStrategyByName(st.DonationStrategy)
	if err != nil {
		return nil, err
	}
	policy := game.Policy{
		ClaimTrigger:        st.ClaimTrigger,
		ClaimMinPerPosition: st.ClaimMinPerPosition,
		AutoBuyID:           st.AutoBuyID,
		AutoGroup:           st.AutoGroup,
		DonationPercentage:  st.DonationPercentage,
	}
	cat := catalog.NewCache(catalog.NewFetcher(st.CatalogBaseURL, log))
	var prices game.PriceSource
	if st.PricePairURL != "" {
		prices = price.NewFeed(st.PricePairURL, log)
	}

	for _, n := range st.Networks {
		nlog := log.With(zap.String("network", n.Name))
		client, err := chain.Dial(ctx, chain.Options{
			RPCURL:         n.RPCURL,
			ChainID:        n.ChainID,
			PrivateKeyHex:  st.PrivateKeyHex,
			RateLimit:      st.RPCRateLimit,
			ConfirmTimeout: st.ConfirmTimeout,
		}, nlog)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("%s: %w", n.Name, err)
		}
		a.clients = append(a.clients, client)
		nlog.Info("connected",
			zap.String("rpc", n.RPCURL),
			zap.Stringer("chain_id", client.ChainID()),
			zap.String("wallet", client.Address().Hex()),
			zap.String("key", chain.MaskHex(st.PrivateKeyHex)))

		b := game.Bind(client, game.Addresses{
			Token:     n.Token,
			Items:     n.Items,
			Staking:   n.Staking,
			Market:    n.Market,
			MultiSend: n.MultiSend,
		})
		seq := game.NewSequencer(game.SequencerConfig{
			Network:         n.Name,
			Ledger:          client,
			Bindings:        b,
			Policy:          policy,
			Donation:        strategy,
			DonationAddress: st.DonationAddress,
			ExplorerTxURL:   n.ExplorerTxURL,
			Options: game.TxOptions{
				GasLimitBufferPct:   st.GasLimitBufferPct,
				GasPriceMulPct:      st.GasPriceMulPct,
				ApprovalMaxAttempts: st.ApprovalMaxAttempts,
			},
			Reporter: a.reporter,
			Observer: observer,
			Logger:   nlog,
		})
		agg := game.NewAggregator(client, b, cat, seq, game.AggregatorOptions{
			TrackDonations:  st.TrackDonations,
			DonationAddress: st.DonationAddress,
			MaxSlots:        uint64(st.MarketMaxSlots),
			EmptyRun:        st.MarketEmptyRun,
		}, observer, nlog)
		a.runners = append(a.runners, game.NewRunner(game.RunnerConfig{
			Network:   n.Name,
			GasSymbol: n.GasSymbol,
			Policy:    policy,
			Tracking:  st.TrackDonations,
		}, game.RunnerDeps{
			Aggregator: agg,
			Sequencer:  seq,
			Bindings:   b,
			Reporter:   a.reporter,
			Prices:     prices,
			Observer:   observer,
			Logger:     nlog,
		}))
	}
	return a, nil
}

// runnersFor returns the runners matching network, all of them when empty.
func (a *app) runnersFor(network string) ([]*game.Runner, error) {
	if network == "" {
		return a.runners, nil
	}
	for _, r := range a.runners {
		if r.Network() == network {
			return []*game.Runner{r}, nil
		}
	}
	return nil, fmt.Errorf("network %q is not tracked", network)
}

// each runs fn for every selected runner and joins the errors.
func (a *app) each(network string, fn func(r *game.Runner) error) error {
	runners, err := a.runnersFor(network)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range runners {
		if err := fn(r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Network(), err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) Close() {
	for _, c := range a.clients {
		c.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
