package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/reservoir/cmd/reservoir/handlers"
)

// Destroy returns the destroy command.
func Destroy() *cobra.Command {
	var (
		configPath string
		noWait     bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Release the reservations of an experiment",
		Long: `Destroy deletes the jobs, servers and networks of every provider of the
experiment and removes the published inventory.

Example:
  reservoir destroy -c reservoir.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), configPath, !noWait)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to experiment file (default: reservoir.yaml)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return without waiting for the backends to release the resources")

	return cmd
}
