package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/willibrandon/ChronoCapture/pkg/candidates"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Work with candidate plans",
	}
	cmd.AddCommand(newPlanValidateCmd())
	return cmd
}

func newPlanValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a candidate plan and list the targets it selects",
		Long: `Load a candidate plan, verify that every nested call-site is mockable and
print each target with the registry path its files are stored under.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := candidates.LoadPlan(args[0])
			if err != nil {
				return err
			}
			descs, err := plan.Descriptors()
			if err != nil {
				return fmt.Errorf("invalid plan:\n%w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tSIGNATURE\tREGISTRY PATH")
			for _, d := range descs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Mode, d.Signature(), d.Key())
			}
			return w.Flush()
		},
	}
}
