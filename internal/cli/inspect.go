package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/ChronoCapture/pkg/replay"
)

func newInspectCmd(flags *globalFlags) *cobra.Command {
	var (
		uuid  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "inspect <path-or-code>",
		Short: "Print the captured records of a target",
		Long: `Read the object logs of a target, including archived copies, and print
its records grouped by correlation identifier. Records of nested calls are
listed with the invocation that enclosed them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options()
			if err != nil {
				return err
			}
			logger := flags.logger(cmd)
			targets, err := registeredTargets(options, logger, args)
			if err != nil {
				return err
			}
			records, err := replay.LoadTarget(targets[0].Layout)
			if err != nil {
				return fmt.Errorf("failed to read records: %w", err)
			}
			all, err := registeredTargets(options, logger, nil)
			if err != nil {
				return err
			}
			records, err = withNested(records, targets[0], all)
			if err != nil {
				return err
			}

			replayer := replay.NewBasicReplayer(records)
			var selected []replay.Record
			if uuid != "" {
				for {
					rec, ok := replayer.ReplayUntil(func(r replay.Record) bool { return r.CorrelationID == uuid })
					if !ok {
						break
					}
					selected = append(selected, rec)
				}
				if len(selected) == 0 {
					return fmt.Errorf("no record carries parent-uuid %s", uuid)
				}
			} else {
				replayer.ReplayForward(func(r replay.Record) { selected = append(selected, r) })
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", targets[0].Path, targets[0].Layout.Code)
			for i, group := range replay.Group(selected) {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "... output limited to %d invocations\n", limit)
					break
				}
				printGroup(out, group)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&uuid, "uuid", "", "only show records with this parent-uuid")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of invocations to print (0 for all)")
	return cmd
}

// withNested adds the records of other targets that share a correlation
// identifier with records, in timestamp order.
func withNested(records []replay.Record, self targetFiles, all []targetFiles) ([]replay.Record, error) {
	ids := make(map[string]bool)
	for _, r := range records {
		if r.CorrelationID != "" {
			ids[r.CorrelationID] = true
		}
	}
	if len(ids) == 0 {
		return records, nil
	}
	out := records
	for _, tf := range all {
		if tf.Layout.Code == self.Layout.Code {
			continue
		}
		other, err := replay.LoadTarget(tf.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to read records of %s: %w", tf.Path, err)
		}
		for _, r := range other {
			if ids[r.CorrelationID] {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func printGroup(w io.Writer, group replay.Invocation) {
	id := group.CorrelationID
	if id == "" {
		id = "(uncorrelated)"
	}
	fmt.Fprintf(w, "\n== %s\n", id)
	for _, r := range group.Records {
		ts := time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(w, "  [%s] %-18s <%s%s>\n", ts, r.Kind, r.Tag, formatAttrs(r.Attrs))
		if r.Body != "" {
			for _, line := range strings.Split(r.Body, "\n") {
				fmt.Fprintf(w, "      %s\n", strings.TrimSpace(line))
			}
		}
	}
}

func formatAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, attrs[k])
	}
	return b.String()
}
