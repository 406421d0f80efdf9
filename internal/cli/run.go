package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/event-buffer/internal/config"
	"github.com/GabrielNunesIT/event-buffer/internal/ingestor"
	"github.com/GabrielNunesIT/event-buffer/internal/service"
)

// shutdownTimeout bounds the final flush and snapshot on exit.
const shutdownTimeout = 15 * time.Second

// NewRunCmd creates the run command.
func NewRunCmd(cfgFile, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record events from the configured sources until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd, cfgFile, logLevel)
		},
	}

	// Source flags
	cmd.Flags().Bool("stdin", true, "read event lines from stdin; ignored when stdin is /dev/null or similar unless set explicitly")
	cmd.Flags().StringSlice("tail", nil, "event files to tail")
	cmd.Flags().String("listen", "", "listen address for event lines (enables the socket source)")
	cmd.Flags().String("listen-network", "udp", "socket source network (udp, tcp)")

	// Hot-reload flag
	cmd.Flags().Bool("hot-reload", true, "enable hot-reload of config file")

	return cmd
}

func runService(cmd *cobra.Command, cfgFile, logLevel *string) error {
	cfg, err := loadConfig(cmd, *cfgFile)
	if err != nil {
		return err
	}

	log, closeLog := SetupLogging(levelOf(cfg, *logLevel), cfg.Log)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := SetupTracing(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracing(sctx)
	}()

	if cfg.Sources.Stdin && !cmd.Flags().Changed("stdin") && !isEventStream(os.Stdin) {
		// Typical under systemd: stdin is /dev/null and would end the run at once.
		log.Info("stdin is not a terminal, pipe or file, stdin source disabled")
		cfg.Sources.Stdin = false
	}

	sources := buildIngestors(cfg, log)
	if len(sources) == 0 {
		return errors.New("no event sources enabled")
	}

	svc, err := service.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	defer svc.Close()
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	log.Infof("event buffer running: collector=%s, sources=%d", cfg.Collector.URL, len(sources))
	notifySystemd(log, daemon.SdNotifyReady)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	// Sources are not part of the group: a read on stdin cannot be interrupted,
	// so shutdown never waits for them.
	sourcesDone := make(chan error, 1)
	go func() {
		sourcesDone <- runIngestors(ctx, sources, svc, log)
	}()

	g, gctx := errgroup.WithContext(ctx)

	hotReloadEnabled, _ := cmd.Flags().GetBool("hot-reload")
	if *cfgFile != "" && hotReloadEnabled {
		if err := startConfigWatcher(gctx, g, cmd, *cfgFile, svc, log); err != nil {
			log.Warningf("failed to start config watcher: %v", err)
		}
	}

	g.Go(func() error {
		defer cancel()
		return handleSignals(gctx, sigChan, sourcesDone, cmd, *cfgFile, svc, log)
	})

	runErr := g.Wait()

	notifySystemd(log, daemon.SdNotifyStopping)

	tctx, tcancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer tcancel()
	if err := svc.OnTerminate(tctx); err != nil {
		log.Errorf("saving buffer on exit failed: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	st := svc.Stats()
	log.Infof("event buffer stopped: recorded=%d, delivered=%d, buffered=%d",
		st.Recorded, st.Delivered, st.Buffered)
	return runErr
}

func buildIngestors(cfg *config.Config, log logger.ILogger) []ingestor.Ingestor {
	var sources []ingestor.Ingestor
	if cfg.Sources.Stdin {
		sources = append(sources, ingestor.NewStdinIngestor(log))
	}
	if len(cfg.Sources.Files) > 0 {
		sources = append(sources, ingestor.NewFileIngestor(cfg.Sources.Files, log))
	}
	if cfg.Sources.Listen.Address != "" {
		sources = append(sources, ingestor.NewSocketIngestor(cfg.Sources.Listen, log))
	}
	return sources
}

// runIngestors runs every source and returns once all of them have stopped.
func runIngestors(ctx context.Context, sources []ingestor.Ingestor, rec ingestor.Recorder, log logger.ILogger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			err := src.Start(gctx, rec)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s source: %w", src.Name(), err)
			}
			log.Debugf("source finished: %s", src.Name())
			return nil
		})
	}
	return g.Wait()
}

func startConfigWatcher(ctx context.Context, g *errgroup.Group, cmd *cobra.Command, cfgFile string, svc *service.Service, log logger.ILogger) error {
	watcher := config.NewConfigWatcher(cfgFile, log)
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	log.Infof("hot-reload enabled: config=%s", cfgFile)

	g.Go(func() error {
		for {
			select {
			case newCfg := <-watcher.Changes():
				applyCLIOverrides(cmd, newCfg)
				svc.Reconfigure(newCfg)
			case err := <-watcher.Errors():
				log.Errorf("config watcher error: %v", err)
			case <-ctx.Done():
				return nil
			}
		}
	})
	return nil
}

func handleSignals(ctx context.Context, sigChan <-chan os.Signal, sourcesDone <-chan error, cmd *cobra.Command, cfgFile string, svc *service.Service, log logger.ILogger) error {
	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				log.Info("received SIGHUP, reloading config")
				notifySystemd(log, daemon.SdNotifyReloading)
				newCfg, err := loadConfig(cmd, cfgFile)
				if err != nil {
					log.Errorf("failed to reload config: %v", err)
				} else {
					svc.Reconfigure(newCfg)
				}
				notifySystemd(log, daemon.SdNotifyReady)
			case syscall.SIGUSR1:
				log.Info("received SIGUSR1, persisting buffer")
				if err := svc.OnSuspend(ctx); err != nil {
					log.Errorf("persisting buffer failed: %v", err)
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Infof("received shutdown signal: %v", sig)
				return nil
			}

		case err := <-sourcesDone:
			if err != nil {
				return err
			}
			// Every source is exhausted: deliver what is left before exiting.
			log.Info("all sources finished, flushing")
			fctx, fcancel := context.WithTimeout(ctx, shutdownTimeout)
			res := svc.Flush(fctx)
			fcancel()
			if res.Err != nil {
				log.Warningf("final flush failed, events kept for the next run: %v", res.Err)
			}
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig(cmd *cobra.Command, cfgFile string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides copies explicitly set flags over the loaded configuration.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Lookup("stdin") != nil && flags.Changed("stdin") {
		cfg.Sources.Stdin, _ = flags.GetBool("stdin")
	}
	if flags.Lookup("tail") != nil {
		if files, _ := flags.GetStringSlice("tail"); len(files) > 0 {
			cfg.Sources.Files = files
		}
	}
	if flags.Lookup("listen") != nil {
		if addr, _ := flags.GetString("listen"); addr != "" {
			cfg.Sources.Listen.Address = addr
		}
		if flags.Changed("listen-network") {
			cfg.Sources.Listen.Network, _ = flags.GetString("listen-network")
		}
	}
}

// isEventStream reports whether f can carry event lines: a terminal, a pipe or a regular file.
func isEventStream(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	mode := info.Mode()
	if mode&os.ModeNamedPipe != 0 || mode.IsRegular() {
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func levelOf(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.LogLevel
}

func notifySystemd(log logger.ILogger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Debugf("systemd notify %q failed: %v", state, err)
	}
}
