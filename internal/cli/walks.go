package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/swapsim/config"
	"github.com/vadiminshakov/swapsim/internal"
)

// WalksOptions holds flags for the walks command.
type WalksOptions struct {
	*RootOptions
	Trials int
	Seed   int64
}

// NewWalksCommand creates the walks command.
func NewWalksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WalksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "walks",
		Short: "Run only the random-walk batches of the config",
		Long: `Run the random-walk batch of every config entry that defines one, skipping
fixed scenarios. Each trial starts from the freshly provisioned pool; output
files continue after the highest run id already in the output directory.

Example:
  swapsim walks --config config.yaml --trials 100 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := config.Get(opts.Config)
			if err != nil {
				return errors.Wrap(err, "failed to get configuration")
			}

			selected := make([]config.Config, 0, len(configs))
			for _, c := range configs {
				if c.Walks == nil {
					continue
				}
				w := *c.Walks
				if cmd.Flags().Changed("trials") {
					w.Trials = opts.Trials
				}
				if cmd.Flags().Changed("seed") {
					w.Seed = opts.Seed
				}
				c.Walks = &w
				selected = append(selected, c)
			}
			if len(selected) == 0 {
				return errors.New("no config entry defines walks")
			}

			return execute(cmd, opts.RootOptions, selected, func(ctx context.Context, sim *internal.Simulator) (*internal.Summary, error) {
				summary := &internal.Summary{Name: sim.Config.Name}
				r, err := sim.RunWalks(ctx)
				summary.Walks = r
				if err != nil {
					return summary, err
				}
				summary.PoolBalances, err = sim.Deployment().Exchange.PoolBalances(ctx)
				return summary, err
			})
		},
	}

	cmd.Flags().IntVar(&opts.Trials, "trials", 0, "override the number of trials")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "override the base seed")

	return cmd
}
