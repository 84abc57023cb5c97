package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/internal/storage/snapshots"
)

// NewSnapshotsCommand creates the snapshots command.
func NewSnapshotsCommand(_ *RootOptions) *cobra.Command {
	var (
		dir    string
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List journaled save-points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := snapshots.NewWALStore(dir)
			if err != nil {
				return errors.Wrap(err, "failed to open snapshot journal")
			}
			defer store.Close()

			var records []domain.SnapshotRecord
			if latest {
				record, ok, err := store.Latest()
				if err != nil {
					return err
				}
				if ok {
					records = append(records, record)
				}
			} else {
				records, err = store.Records()
				if err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRUN\tDIGEST\tCREATED\tBYTES")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", r.ID, r.RunID, r.Digest, r.CreatedAt.Format("2006-01-02 15:04:05"), len(r.State))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "snapshot journal directory (default ./wal/snapshots)")
	cmd.Flags().BoolVar(&latest, "latest", false, "show only the most recent save-point")

	return cmd
}
