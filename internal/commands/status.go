package commands

import (
	"github.com/spf13/cobra"

	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/stock"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current stock availability",
		Long: `Fetch the stock record once and print its availability.

With --watch, keep fetching on the configured interval and print one
document per fetch.`,
		Example: `  stockstatus status
  stockstatus status --jq .data.status
  stockstatus status --watch --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if watch {
				return runHeadless(ctx, app)
			}

			s, err := app.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			res := stock.Fetch(ctx, s)
			if res.Err != nil {
				return res.Err
			}

			tracker := stock.NewTracker()
			tracker.Complete(res, false)
			snap := tracker.Snapshot()
			return app.OK(snap.View(), output.WithSummary(summaryFor(snap)))
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep fetching on the refresh interval")
	return cmd
}
