package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/swapsim/config"
	"github.com/vadiminshakov/swapsim/internal/setup"
	"gopkg.in/yaml.v3"
)

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate a config file",
		Long: `Generate a config file with an interactive wizard, or write the reference
frxETH/ETH setup with --defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !defaults {
				return setup.RunTUI(rootOpts.Config)
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return errors.Wrap(err, "failed to generate yaml")
			}
			if err := os.WriteFile(rootOpts.Config, data, 0o644); err != nil {
				return errors.Wrap(err, "failed to save config file")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", rootOpts.Config)
			return nil
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "write the reference config without prompting")

	return cmd
}
