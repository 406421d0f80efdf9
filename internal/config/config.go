// Package config provides configuration loading with layered overrides.
// Load order: defaults -> YAML/JSON file -> environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Tracing modes.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "EVENT_BUFFER_"

// Config is the root configuration structure for the event buffer.
type Config struct {
	LogLevel  string          `koanf:"loglevel" yaml:"log_level" json:"log_level"`
	Log       LogConfig       `koanf:"log"`
	Collector CollectorConfig `koanf:"collector"`
	// Cooldown is the debounce window between the first recorded event and the flush.
	Cooldown time.Duration `koanf:"cooldown"`
	// MaxEvents bounds the in-memory buffer; 0 means unbounded.
	MaxEvents int             `koanf:"maxevents" yaml:"max_events" json:"max_events"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Sources   SourcesConfig   `koanf:"sources"`
}

// LogConfig controls where the host writes its own logs.
type LogConfig struct {
	File       string `koanf:"file"` // empty: stderr only
	MaxSizeMB  int    `koanf:"maxsizemb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"maxbackups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"maxagedays" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// CollectorConfig describes the remote collector endpoint.
type CollectorConfig struct {
	URL     string            `koanf:"url"`
	Timeout time.Duration     `koanf:"timeout"`
	Headers map[string]string `koanf:"headers"`
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	Backend string             `koanf:"backend"` // "file" or "redis"
	Path    string             `koanf:"path"`
	Redis   RedisStorageConfig `koanf:"redis"`
}

// RedisStorageConfig configures the Redis snapshot store.
type RedisStorageConfig struct {
	URL string `koanf:"url"`
	Key string `koanf:"key"`
}

// TelemetryConfig controls tracing of flush cycles.
type TelemetryConfig struct {
	Tracing string `koanf:"tracing"` // "none" or "stdout"
}

// SourcesConfig selects where the host process reads events from.
type SourcesConfig struct {
	Stdin  bool               `koanf:"stdin"`
	Files  []string           `koanf:"files"` // event files to tail
	Listen SocketSourceConfig `koanf:"listen"`
}

// SocketSourceConfig configures the local event socket. An empty address disables it.
type SocketSourceConfig struct {
	Network string `koanf:"network"` // "udp" or "tcp"
	Address string `koanf:"address"`
}

// defaults returns the default configuration values.
func defaults() Config {
	return Config{
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Collector: CollectorConfig{
			Timeout: 10 * time.Second,
		},
		Cooldown: 5 * time.Second,
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    "events.json",
			Redis: RedisStorageConfig{
				Key: "event-buffer:snapshot",
			},
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingNone,
		},
		Sources: SourcesConfig{
			Stdin: true,
			Listen: SocketSourceConfig{
				Network: "udp",
			},
		},
	}
}

// Load reads configuration from all sources with proper override order.
// Order: defaults -> config file -> environment variables.
func Load(configPath string) (*Config, error) {
	opts := []configloader.Option[Config]{
		configloader.WithDefaults[Config](defaults()),
	}

	if configPath != "" {
		opts = append(opts, configloader.WithFile[Config](configPath))
	} else {
		for _, path := range []string{"./event-buffer.yaml", "/etc/event-buffer/config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				opts = append(opts, configloader.WithFile[Config](path))
				break
			}
		}
	}

	opts = append(opts, configloader.WithEnv[Config](EnvPrefix))

	loader := configloader.NewConfigLoader[Config](opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every problem that would stop the service from running.
func (c *Config) Validate() error {
	var errs []error

	if c.Collector.URL == "" {
		errs = append(errs, errors.New("collector.url is required"))
	} else if u, err := url.Parse(c.Collector.URL); err != nil {
		errs = append(errs, fmt.Errorf("collector.url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("collector.url: unsupported scheme %q", u.Scheme))
	}

	if c.Collector.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("collector.timeout must be positive, got %v", c.Collector.Timeout))
	}
	if c.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("cooldown must be positive, got %v", c.Cooldown))
	}
	if c.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("maxevents must not be negative, got %d", c.MaxEvents))
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the file backend"))
		}
	case BackendRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for the redis backend"))
		}
		if c.Storage.Redis.Key == "" {
			errs = append(errs, errors.New("storage.redis.key is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}

	switch c.Telemetry.Tracing {
	case "", TracingNone, TracingStdout:
	default:
		errs = append(errs, fmt.Errorf("telemetry.tracing: unknown mode %q", c.Telemetry.Tracing))
	}

	for i, f := range c.Sources.Files {
		if f == "" {
			errs = append(errs, fmt.Errorf("sources.files[%d]: empty path", i))
		}
	}
	if c.Sources.Listen.Address != "" {
		switch c.Sources.Listen.Network {
		case "udp", "tcp":
		default:
			errs = append(errs, fmt.Errorf("sources.listen.network: unsupported network %q", c.Sources.Listen.Network))
		}
	}

	return errors.Join(errs...)
}
