// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/reservoir/cmd/reservoir/handlers"
)

// Root returns the root command for the reservoir CLI.
func Root() *cobra.Command {
	var verbose int

	cmd := &cobra.Command{
		Use:           "reservoir",
		Short:         "Reserve, image and synchronize testbed resources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			handlers.SetVerbosity(verbose)
		},
	}
	cmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "Increase log verbosity (repeatable)")

	cmd.AddCommand(Up())
	cmd.AddCommand(Slot())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Simulate())
	cmd.AddCommand(Version())

	return cmd
}

// parseStart parses an RFC 3339 start date. Empty means unset.
func parseStart(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --start %q: expected RFC 3339, e.g. 2026-01-02T15:04:05Z", s)
	}
	return &t, nil
}
