// Package cli implements the chronocap command line.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/willibrandon/ChronoCapture/internal/logging"
	"github.com/willibrandon/ChronoCapture/pkg/instrumentation"
	"github.com/willibrandon/ChronoCapture/pkg/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	storageDir string
	logLevel   string
}

// options loads capture options from the config file and environment,
// with the --storage-dir flag taking precedence.
func (g *globalFlags) options() (instrumentation.Options, error) {
	options, err := instrumentation.LoadOptions(g.configFile)
	if err != nil {
		return options, err
	}
	if g.storageDir != "" {
		options.StorageDir = g.storageDir
	}
	return options, nil
}

func (g *globalFlags) logger(cmd *cobra.Command) zerolog.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = g.logLevel
	cfg.Output = cmd.ErrOrStderr()
	return logging.NewWithComponent(cfg, "cli")
}

// NewRootCmd builds the chronocap command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "chronocap",
		Short: "ChronoCapture - inspect and manage captured execution traces",
		Long: `Inspect the files written by the ChronoCapture tracer.

The tracer stores, per captured method, the parameters, results and receiver
state of a bounded number of invocations, together with the nested calls
made inside them. Files are named by a short path code kept in a registry
inside the storage directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "capture options file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flags.storageDir, "storage-dir", "", "trace storage directory (default from config or CHRONOCAP_STORAGE_DIR)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newResolveCmd(flags))
	rootCmd.AddCommand(newStatusCmd(flags))
	rootCmd.AddCommand(newInspectCmd(flags))
	rootCmd.AddCommand(newArchiveCmd(flags))
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.GetVersionInfo())
		},
	}
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
