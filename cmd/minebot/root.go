package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MartinGerritsen/mining.game.bot/internal/catalog"
	"github.com/MartinGerritsen/mining.game.bot/internal/config"
	"github.com/MartinGerritsen/mining.game.bot/internal/game"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:           "minebot",
		Short:         "Staking bot for mining.game",
		Long:          "minebot claims staking rewards, buys items from the market and stakes them again on a schedule.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "logs/minebot.log", "JSON log file")
	flags.String("network", "", "only act on this network (MATIC or ALT)")
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log_file", flags.Lookup("log-file"))

	rootCmd.AddCommand(
		newRunCmd(v),
		newStatusCmd(v),
		newClaimCmd(v),
		newBuyCmd(v),
		newStakeCmd(v),
		newDonateCmd(v),
		newCatalogCmd(v),
		newVersionCmd(),
	)
	return rootCmd
}

// withApp wires the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, a *app, network string) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := wireApp(ctx, v, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()
	network, _ := cmd.Flags().GetString("network")
	return fn(ctx, a, strings.ToUpper(network))
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Refresh and print the game state without sending transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, v, func(ctx context.Context, a *app, network string) error {
				return a.each(network, func(r *game.Runner) error {
					_, err := r.Status(ctx)
					return err
				})
			})
		},
	}
}

func newClaimCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim rewards from every position above the per-position minimum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, v, func(ctx context.Context, a *app, network string) error {
				return a.each(network, func(r *game.Runner) error {
					res, err := r.Claim(ctx)
					if err == nil && res.Failed > 0 {
						err = fmt.Errorf("%d claim(s) failed", res.Failed)
					}
					return err
				})
			})
		},
	}
}

func newBuyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "buy [item-id]",
		Short: "Buy as many units of an item as the balance allows, then stake",
		Long:  "Buy as many units of an item as the balance allows, then stake. Without an id the AUTO_BUY_ID item is bought.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uint64
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil || n == 0 {
					return fmt.Errorf("invalid item id %q", args[0])
				}
				id = n
			}
			return withApp(cmd, v, func(ctx context.Context, a *app, network string) error {
				return a.each(network, func(r *game.Runner) error { return r.Buy(ctx, id) })
			})
		},
	}
}

func newStakeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stake",
		Short: "Stake every item in the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, v, func(ctx context.Context, a *app, network string) error {
				return a.each(network, func(r *game.Runner) error {
					res, err := r.Stake(ctx)
					if err == nil && res.Failed > 0 {
						err = fmt.Errorf("%d stake(s) failed", res.Failed)
					}
					return err
				})
			})
		},
	}
}

func newDonateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "donate <amount>",
		Short: "Send tokens to the donation address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := game.ParseDonationAmount(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, v, func(ctx context.Context, a *app, network string) error {
				if network == "" {
					network = a.runners[0].Network()
				}
				return a.each(network, func(r *game.Runner) error { return r.Donate(ctx, amount) })
			})
		},
	}
}

func newCatalogCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the game's item catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := config.Load(v)
			if err != nil {
				return err
			}
			log, err := newLogger(st.LogLevel, st.LogFile)
			if err != nil {
				return err
			}
			defer log.Sync()
			items, err := catalog.NewFetcher(st.CatalogBaseURL, log).FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", it.ID, it.Name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
