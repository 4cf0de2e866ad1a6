package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/reservoir/cmd/reservoir/handlers"
)

// Simulate returns the simulate command.
func Simulate() *cobra.Command {
	var opts handlers.SimulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a local testbed for trying experiments",
		Long: `Simulate serves the testbed API from an inventory file. Jobs are placed on
a calendar and refused with a suggested start date when their resources are
busy. Deployments finish on their first poll; nodes listed in fail_deploy
always fail. Prometheus metrics are served on /metrics.

Point an oar provider's endpoint at the simulator to use it.

Example:
  reservoir simulate --listen :8080 --inventory testbed.yaml --db sim.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Simulate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "Address to serve on")
	cmd.Flags().StringVar(&opts.Inventory, "inventory", "", "Path to the testbed inventory (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "Path to the sqlite database (default: in memory)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "Bearer token required from clients (default: RESERVOIR_OAR_TOKEN)")
	_ = cmd.MarkFlagRequired("inventory")

	return cmd
}
