package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCommand evaluates one job immediately and prints its run record.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job now and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			run, runErr := a.sched.RunJob(cmd.Context(), args[0])
			if run.Job == "" {
				return runErr
			}
			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return err
				}
				return runErr
			}
			fmt.Fprintf(out, "%s %s in %s\n", run.Job, run.Status, run.FinishedAt.Sub(run.StartedAt))
			for _, key := range summaryKeys {
				if v, ok := run.Summary[key]; ok {
					fmt.Fprintf(out, "  %-10s %v\n", key, v)
				}
			}
			return runErr
		},
	}
}

var summaryKeys = []string{"scanned", "alerts", "suppressed", "updated", "skipped", "errors"}
