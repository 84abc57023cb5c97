package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/swapsim/config"
	"github.com/vadiminshakov/swapsim/internal"
	"github.com/vadiminshakov/swapsim/internal/observability"
	"github.com/vadiminshakov/swapsim/internal/report"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Only []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every simulation of the config",
		Long: `Run every entry of the config file. Each entry gets its own simulated chain;
entries run concurrently, the scenarios of one entry run in order.

Example:
  swapsim run --config config.yaml
  swapsim run --config config.yaml --only frxeth_eth_pool --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := loadConfigs(opts.Config, opts.Only)
			if err != nil {
				return err
			}
			return execute(cmd, opts.RootOptions, configs, func(ctx context.Context, sim *internal.Simulator) (*internal.Summary, error) {
				return sim.Run(ctx)
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "run only the named entries")

	return cmd
}

func loadConfigs(path string, only []string) ([]config.Config, error) {
	configs, err := config.Get(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get configuration")
	}
	if len(only) == 0 {
		return configs, nil
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}
	filtered := configs[:0]
	for _, c := range configs {
		if wanted[c.Name] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, errors.Errorf("no config entry matches %v", only)
	}
	return filtered, nil
}

type runFunc func(ctx context.Context, sim *internal.Simulator) (*internal.Summary, error)

// execute runs fn for every config entry concurrently and prints the summary.
func execute(cmd *cobra.Command, opts *RootOptions, configs []config.Config, fn runFunc) error {
	logger, err := newLogger(opts)
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("", reg)
	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: observability.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", opts.MetricsAddr))
	}

	var (
		mu        sync.Mutex
		summaries = make([]*internal.Summary, len(configs))
	)
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range configs {
		g.Go(func() error {
			sim, err := internal.NewSimulator(c, metrics, logger)
			if err != nil {
				return errors.Wrapf(err, "failed to create simulation %s", c.Name)
			}
			defer sim.Close()

			summary, err := fn(ctx, sim)
			mu.Lock()
			summaries[i] = summary
			mu.Unlock()
			if err != nil {
				return errors.Wrapf(err, "simulation %s", c.Name)
			}
			logger.Info("simulation finished", zap.String("name", c.Name))
			return nil
		})
	}
	runErr := g.Wait()

	fmt.Fprintln(cmd.OutOrStdout(), report.Render(summaries))
	return runErr
}
