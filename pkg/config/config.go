// Package config loads server configuration from file, environment and
// defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VAULTSYNC_*, nested keys joined with __)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/vaultsync/internal/purger"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// Config is the full server configuration.
type Config struct {
	// Echo enables verbose SQL logging.
	Echo bool `mapstructure:"echo" yaml:"echo"`

	// Debug lowers the log level to DEBUG and enables debug routes.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// ListenAddr is the HTTP/WebSocket bind address.
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	Database store.Config  `mapstructure:"database" yaml:"database"`
	Blob     blob.Config   `mapstructure:"blob" yaml:"blob"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Purge    purger.Config `mapstructure:"purge" yaml:"purge"`
	CORS     CORSConfig    `mapstructure:"cors" yaml:"cors"`
}

// CORSConfig lists the browser origins allowed to call the HTTP API.
type CORSConfig struct {
	Origins []string `mapstructure:"origins" yaml:"origins"`
}

// DefaultClientOrigins are the origins the official note clients
// connect from.
var DefaultClientOrigins = []string{
	"app://obsidian.md",
	"capacitor://localhost",
	"http://localhost",
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load reads configuration from the given file path, the environment
// and defaults. An empty path searches the working directory and
// /etc/vaultsync for config.yaml; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills missing values and propagates the top-level
// flags into the sub-configs that consume them.
func ApplyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Debug {
		cfg.Logging.Level = "DEBUG"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	cfg.Database.ApplyDefaults()
	cfg.Database.Echo = cfg.Echo
	cfg.Blob.ApplyDefaults()
	cfg.Purge.ApplyDefaults()

	if len(cfg.CORS.Origins) == 0 {
		cfg.CORS.Origins = append([]string(nil), DefaultClientOrigins...)
	}
}

// configDecodeHooks converts the scalar forms viper hands back into
// the richer config types. Comma-separated strings become slices so
// VAULTSYNC_CORS__ORIGINS="a,b" resolves to a list.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Validate checks the struct tags and the sub-config invariants.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if err := cfg.Database.Validate(); err != nil {
		return err
	}
	return cfg.Blob.Validate()
}

func setupViper(v *viper.Viper, configPath string) {
	// Nested keys map to environment variables with a double
	// underscore: VAULTSYNC_PURGE__INTERVAL=2.
	v.SetEnvPrefix("VAULTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vaultsync")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// setDefaults registers every recognized key so environment-only
// setups resolve them through AutomaticEnv.
func setDefaults(v *viper.Viper) {
	v.SetDefault("echo", false)
	v.SetDefault("debug", false)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "data/data.db")
	v.SetDefault("blob.backend", "fs")
	v.SetDefault("blob.prefix", "data/blobs")
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("cors.origins", DefaultClientOrigins)
	v.SetDefault("purge.enabled", true)
	v.SetDefault("purge.interval", 1)
	v.SetDefault("purge.vault_age", 30)
	v.SetDefault("purge.pending_age", 7)
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
