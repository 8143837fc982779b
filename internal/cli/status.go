package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/willibrandon/ChronoCapture/pkg/recorder"
)

// targetStatus summarizes the files of one target.
type targetStatus struct {
	Code        string `json:"code"`
	Path        string `json:"path"`
	Invocations int    `json:"invocations"`
	LogBytes    int64  `json:"log_bytes"`
	LargestLog  int64  `json:"largest_log"`
	SizeTripped bool   `json:"size_tripped"`
	AtCap       bool   `json:"at_cap"`
}

// newStatusCmd creates the status command.
func newStatusCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status [path-or-code...]",
		Short: "Show capture progress per target",
		Long: `Display, for each registered target, the durable invocation count and
the size of its object logs compared with the configured limits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options()
			if err != nil {
				return err
			}
			targets, err := registeredTargets(options, flags.logger(cmd), args)
			if err != nil {
				return err
			}
			limits := options.Limits()

			statuses := make([]targetStatus, 0, len(targets))
			for _, tf := range targets {
				st := targetStatus{Code: tf.Layout.Code, Path: tf.Path}
				n, err := recorder.NewCounter(tf.Layout.Path(recorder.InvocationCount), "").Read()
				if err != nil {
					return fmt.Errorf("failed to read count of %s: %w", tf.Path, err)
				}
				st.Invocations = n
				for _, p := range tf.Layout.ObjectLogs() {
					info, err := os.Stat(p)
					if err != nil {
						continue
					}
					st.LogBytes += info.Size()
					if info.Size() > st.LargestLog {
						st.LargestLog = info.Size()
					}
				}
				st.SizeTripped = limits.MaxFileBytes > 0 && st.LargestLog >= limits.MaxFileBytes
				st.AtCap = limits.MaxInvocations > 0 && st.Invocations >= limits.MaxInvocations
				statuses = append(statuses, st)
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tINVOCATIONS\tLOG BYTES\tSTATE\tPATH")
			for _, st := range statuses {
				state := "capturing"
				switch {
				case st.SizeTripped:
					state = "size-limit"
				case st.AtCap:
					state = "complete"
				}
				fmt.Fprintf(w, "%s\t%d/%d\t%d\t%s\t%s\n",
					st.Code, st.Invocations, limits.MaxInvocations, st.LogBytes, state, st.Path)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json)")
	return cmd
}
