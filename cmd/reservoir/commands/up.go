package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/reservoir/cmd/reservoir/handlers"
)

// Up returns the up command.
func Up() *cobra.Command {
	var (
		configPath string
		start      string
		opts       handlers.UpOptions
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Reserve and prepare the resources of an experiment",
		Long: `Up reserves the machines and networks of every provider of the experiment,
images the machines when required and publishes the resulting inventory.

With several providers, a start date accepted by all of them is searched
within the window, then committed on every provider at once. A provider
refusing the date rolls the others back and the search resumes from its
suggestion.

Example:
  reservoir up -c reservoir.yaml --window 2h --output roles.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := parseStart(start)
			if err != nil {
				return err
			}
			opts.Start = t
			return handlers.Up(cmd.Context(), configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to experiment file (default: reservoir.yaml)")
	cmd.Flags().BoolVar(&opts.ForceDeploy, "force-deploy", false, "Image machines even when they already run the image")
	cmd.Flags().StringVar(&start, "start", "", "Earliest start date (RFC 3339)")
	cmd.Flags().DurationVar(&opts.Window, "window", 0, "How far past the start date to search for a common slot")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the inventory to this file")
	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address during the run")

	return cmd
}
