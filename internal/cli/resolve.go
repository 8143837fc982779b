package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/willibrandon/ChronoCapture/pkg/pathcode"
)

func newResolveCmd(flags *globalFlags) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "resolve [path...]",
		Short: "Resolve target paths to their storage codes",
		Long: `Print the storage code of each target path, assigning new codes for
paths the registry has not seen. With --list, print the whole registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options()
			if err != nil {
				return err
			}
			registry, err := pathcode.Open(options.RegistryPath(), flags.logger(cmd))
			if err != nil {
				return fmt.Errorf("failed to open path code registry: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if list {
				entries, err := registry.Entries()
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\n", e.Code, e.Path)
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("at least one path is required unless --list is set")
			}
			for _, path := range args {
				code, err := registry.Resolve(path)
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", path, err)
				}
				fmt.Fprintf(w, "%s\t%s\n", code, path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list every registered path")
	return cmd
}
