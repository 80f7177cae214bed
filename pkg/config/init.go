package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/vaultsync/internal/purger"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// configHeader is prepended to generated configuration files.
const configHeader = `# vaultsync configuration file
#
# Every key can also be set through the environment with the VAULTSYNC_
# prefix, nested keys joined with a double underscore:
#   VAULTSYNC_LISTEN_ADDR=:9090
#   VAULTSYNC_PURGE__INTERVAL=6

`

// Default returns the configuration a server starts with when no file
// and no environment overrides are present.
func Default() *Config {
	cfg := &Config{
		ListenAddr: ":8080",
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
			SQLite: store.SQLiteConfig{
				Path: filepath.Join("data", "data.db"),
			},
		},
		Blob: blob.Config{
			Backend: blob.BackendFS,
			Prefix:  filepath.Join("data", "blobs"),
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{Enabled: true},
		Purge: purger.Config{
			Enabled:    true,
			Interval:   1,
			VaultAge:   30,
			PendingAge: 7,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the configuration to path as YAML. The file is written
// with mode 0600 since it may hold database or S3 credentials.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitConfig writes a default configuration file to path. An existing
// file is left alone unless force is set.
func InitConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	return Save(Default(), path)
}
