// Package config provides YAML-based configuration loading for upsock.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName is a logical name used in log output
	AppName string `mapstructure:"app_name" yaml:"app_name"`

	// Identity is the local endpoint
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Transport selects and tunes the channel
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Publish drives the example publisher
	Publish PublishConfig `mapstructure:"publish" yaml:"publish"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs" yaml:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development" yaml:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable" yaml:"enable"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// PublishConfig controls the example publisher.
type PublishConfig struct {
	IntervalMS    int    `mapstructure:"interval_ms" yaml:"interval_ms"`
	PayloadFormat string `mapstructure:"payload_format" yaml:"payload_format"` // raw, json, cbor, proto
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "upsock",
		Identity: IdentityConfig{
			Authority:      "test.app",
			UEID:           0x18002,
			UEVersionMajor: 1,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/upsock.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Transport: TransportConfig{
			Kind:          "uds",
			BackoffMS:     1000,
			MaxFrameBytes: 16 << 20,
		},
		Publish: PublishConfig{IntervalMS: 1000, PayloadFormat: "raw"},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix UPSOCK and `.`/`-` are replaced with `_`.
// Example: UPSOCK_TRANSPORT_SOCKET_DIR=/run/upsock
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("UPSOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("identity.authority", cfg.Identity.Authority)
	v.SetDefault("identity.ue_id", cfg.Identity.UEID)
	v.SetDefault("identity.ue_version_major", cfg.Identity.UEVersionMajor)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("transport.kind", cfg.Transport.Kind)
	v.SetDefault("transport.socket_dir", cfg.Transport.SocketDir)
	v.SetDefault("transport.channel", cfg.Transport.Channel)
	v.SetDefault("transport.backoff_ms", cfg.Transport.BackoffMS)
	v.SetDefault("transport.max_frame_bytes", cfg.Transport.MaxFrameBytes)
	v.SetDefault("publish.interval_ms", cfg.Publish.IntervalMS)
	v.SetDefault("publish.payload_format", cfg.Publish.PayloadFormat)

	if path == "" {
		if envPath := os.Getenv("UPSOCK_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("upsock")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".upsock"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if err := c.Identity.validate(); err != nil {
		return err
	}
	if err := c.Transport.validate(); err != nil {
		return err
	}
	if c.Publish.IntervalMS <= 0 {
		return fmt.Errorf("invalid publish.interval_ms: %d", c.Publish.IntervalMS)
	}
	c.Publish.PayloadFormat = strings.ToLower(strings.TrimSpace(c.Publish.PayloadFormat))
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
