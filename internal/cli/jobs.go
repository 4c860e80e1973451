package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewJobsCommand lists registered jobs with their next fire time.
func NewJobsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs and their cadences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			jobs := a.sched.Jobs()
			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSCHEDULE\tNEXT RUN")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name, j.Spec, j.Next.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
