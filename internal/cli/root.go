// Package cli wires the scheduler binary's commands.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the scheduler binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Workforce compliance rule scheduler",
		Long:          "Runs the compliance rule evaluators on their cadences and serves the admin API.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))

	return cmd
}
