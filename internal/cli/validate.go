package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/event-buffer/internal/config"
	"github.com/GabrielNunesIT/event-buffer/internal/store"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			// Create a silent logger for validation (discards output)
			log := logger.NewConsoleLogger(io.Discard)

			st, err := store.New(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("storage configuration error: %w", err)
			}
			if c, ok := st.(io.Closer); ok {
				defer c.Close()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid:\n")
			fmt.Fprintf(out, "  Collector: %s (timeout %v)\n", cfg.Collector.URL, cfg.Collector.Timeout)
			fmt.Fprintf(out, "  Cooldown:  %v\n", cfg.Cooldown)
			fmt.Fprintf(out, "  Storage:   %s\n", st.Name())
			fmt.Fprintf(out, "  Sources:   stdin=%t, files=%d, listen=%q\n",
				cfg.Sources.Stdin, len(cfg.Sources.Files), cfg.Sources.Listen.Address)
			return nil
		},
	}
}
