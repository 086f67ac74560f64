package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/MartinGerritsen/mining.game.bot/internal/game"
	"github.com/MartinGerritsen/mining.game.bot/internal/metrics"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run cycles on a timer with keypress commands",
		Long: "Run refreshes every tracked network, claims when pending rewards cross CLAIM_TRIGGER, " +
			"buys AUTO_BUY_ID and stakes. Keys: r refresh, c claim, b buy, s stake, d donate, q quit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("interval") {
				v.Set("refresh_interval", interval.String())
			}
			if once {
				v.Set("no_running_process", true)
			}
			interactive := !v.GetBool("no_running_process") && term.IsTerminal(int(os.Stdin.Fd()))
			if interactive {
				cmd.SetOut(crlfWriter{w: os.Stdout})
			}

			return withApp(cmd, v, func(ctx context.Context, a *app, network string) error {
				runners, err := a.runnersFor(network)
				if err != nil {
					return err
				}
				st := a.settings
				sched := game.NewScheduler(runners, game.SchedulerOptions{
					Interval:    st.RefreshInterval,
					Once:        st.NoRunningProcess,
					Interactive: interactive,
				}, a.reporter, a.log)

				if a.registry != nil {
					srv := startMetricsServer(st.MetricsAddr, a.registry, a.log)
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						_ = srv.Shutdown(shutdownCtx)
					}()
				}
				if interactive {
					restore, err := startKeys(os.Stdin, sched, a.reporter, runners[0].Network())
					if err != nil {
						return err
					}
					defer restore()
				}

				a.log.Info("scheduler started",
					zap.Duration("interval", st.RefreshInterval),
					zap.Bool("once", st.NoRunningProcess),
					zap.Int("networks", len(runners)))
				return sched.Run(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between cycles (overrides REFRESH_INTERVAL)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func startMetricsServer(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
