package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/event-buffer/internal/service"
)

// NewRecordCmd creates the record command, a one-shot record and flush.
func NewRecordCmd(cfgFile, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "record TYPE [DATA]",
		Short: "Record one event and flush it together with any saved events",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}

			log, closeLog := SetupLogging(levelOf(cfg, *logLevel), cfg.Log)
			defer closeLog()

			ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout)
			defer cancel()

			shutdownTracing, err := SetupTracing(ctx, cfg.Telemetry, os.Stderr)
			if err != nil {
				return fmt.Errorf("setting up tracing: %w", err)
			}
			defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

			svc, err := service.New(cfg, log)
			if err != nil {
				return fmt.Errorf("creating service: %w", err)
			}
			defer svc.Close()
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("starting service: %w", err)
			}

			data := ""
			if len(args) == 2 {
				data = args[1]
			}
			svc.Record(args[0], data)

			res := svc.Flush(ctx)
			if err := svc.OnTerminate(ctx); err != nil {
				return fmt.Errorf("saving buffer: %w", err)
			}

			// A restored snapshot may have been flushed by the cooldown already,
			// so report the totals rather than this one result.
			st := svc.Stats()
			out := cmd.OutOrStdout()
			if st.Buffered == 0 {
				fmt.Fprintf(out, "delivered %d events\n", st.Delivered)
				return nil
			}
			fmt.Fprintf(out, "not delivered (%s), %d events saved for the next run\n", res.Outcome, st.Buffered)
			return nil
		},
	}
}
