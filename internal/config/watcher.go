package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the config file when it changes on disk.
// It watches the parent directory so editors that replace the file by rename are seen too.
type ConfigWatcher struct {
	path       string
	changes    chan *Config
	errs       chan error
	debounce   time.Duration
	mu         sync.Mutex
	lastConfig *Config
	logger     logger.ILogger
}

// NewConfigWatcher creates a watcher for the config file at path.
func NewConfigWatcher(path string, log logger.ILogger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		changes:  make(chan *Config, 1),
		errs:     make(chan error, 1),
		debounce: 200 * time.Millisecond,
		logger:   log.SubLogger("ConfigWatcher"),
	}
}

// Changes delivers every successfully reloaded and validated config.
func (w *ConfigWatcher) Changes() <-chan *Config {
	return w.changes
}

// Errors delivers reload and watch failures.
func (w *ConfigWatcher) Errors() <-chan error {
	return w.errs
}

// Start begins watching in the background until ctx is done.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.logger.Debugf("watching config file: %s", w.path)
	go w.loop(ctx, fw)
	return nil
}

func (w *ConfigWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Editors often emit several events per save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("fsnotify error: %v", err)
			w.report(err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Errorf("config reload rejected: %v", err)
		w.report(err)
		return
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	w.logger.Infof("config reloaded: path=%s", w.path)

	select {
	case w.changes <- cfg:
	default:
		w.logger.Warning("config change channel full, dropping update")
	}
}

func (w *ConfigWatcher) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// LastConfig returns the last config accepted by the watcher, or nil.
func (w *ConfigWatcher) LastConfig() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastConfig
}
