package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "event-buffer",
		Short: "Buffers telemetry events and delivers them in batches to a collector",
		Long: `event-buffer records named events, waits for a quiet cooldown window and
then POSTs everything recorded so far to a remote collector as one batch.

Events that could not be delivered are kept in memory and in a snapshot
(a JSON file or a Redis key) and are sent again with the next batch, also
after a restart.

Signals: SIGUSR1 persists the buffer, SIGHUP reloads the configuration,
SIGINT/SIGTERM persist the buffer and exit.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./event-buffer.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides the config")

	rootCmd.AddCommand(
		NewRunCmd(&cfgFile, &logLevel),
		NewRecordCmd(&cfgFile, &logLevel),
		NewValidateCmd(&cfgFile),
		NewVersionCmd(),
	)

	return rootCmd
}
