package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/reservoir/cmd/reservoir/handlers"
)

// Slot returns the slot command.
func Slot() *cobra.Command {
	var (
		configPath string
		start      string
		window     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Print the first start date every provider accepts",
		Long: `Slot probes every provider for free resources, from the start date on and
in increments of RESERVOIR_SLOT_INCREMENT, until all of them accept the same
date or the window is exhausted. Nothing is reserved.

Example:
  reservoir slot -c reservoir.yaml --start 2026-01-02T08:00:00Z --window 6h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := parseStart(start)
			if err != nil {
				return err
			}
			return handlers.Slot(cmd.Context(), configPath, t, window)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to experiment file (default: reservoir.yaml)")
	cmd.Flags().StringVar(&start, "start", "", "Earliest start date (RFC 3339)")
	cmd.Flags().DurationVar(&window, "window", 0, "How far past the start date to search")

	return cmd
}
