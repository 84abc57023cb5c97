// Package cli wires the swapsim commands.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config      string
	Verbose     bool
	MetricsAddr string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "swapsim",
		Short: "Swap simulation harness for StableSwap pools",
		Long: `swapsim deploys a simulated two-coin StableSwap pool, drives it with fixed
or random-walk trade sequences and records per-trade telemetry (prices,
balances, fees, gas) as CSV files and optionally in SQLite.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "config.yaml", "path to yaml config")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWalksCommand(opts))
	cmd.AddCommand(NewSetupCommand(opts))
	cmd.AddCommand(NewSnapshotsCommand(opts))

	return cmd
}

func newLogger(opts *RootOptions) (*zap.Logger, error) {
	if opts.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
