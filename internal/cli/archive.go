package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/willibrandon/ChronoCapture/pkg/recorder"
)

func newArchiveCmd(flags *globalFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "archive [path-or-code...]",
		Short: "Write zstd-compressed copies of trace logs",
		Long: `Compress the object logs of the selected targets, or of every target with
--all, into .zst files next to them. The original logs are left in place;
inspect reads either form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one target or use --all")
			}
			options, err := flags.options()
			if err != nil {
				return err
			}
			targets, err := registeredTargets(options, flags.logger(cmd), args)
			if err != nil {
				return err
			}

			var total int64
			files := 0
			for _, tf := range targets {
				for _, src := range tf.Layout.ObjectLogs() {
					if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
						continue
					}
					n, err := recorder.ArchiveFile(src, src+recorder.ArchiveSuffix)
					if err != nil {
						return fmt.Errorf("failed to archive %s: %w", src, err)
					}
					total += n
					files++
				}
			}
			cmd.Printf("Archived %d logs (%d bytes) from %d targets\n", files, total, len(targets))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "archive every registered target")
	return cmd
}
