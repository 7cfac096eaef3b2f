// Package config provides configuration management for the Ledger subprovider.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/otoco-io/ledger-web3-subprovider/internal/hdkey"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version"`
	Network NetworkConfig `yaml:"network"`
	Device  DeviceConfig  `yaml:"device"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig identifies the Ethereum network transactions are bound to.
type NetworkConfig struct {
	ChainID int64 `yaml:"chain_id"`
}

// DeviceConfig defines derivation and device interaction settings.
type DeviceConfig struct {
	BaseDerivationPath   string `yaml:"base_derivation_path"`
	OnDeviceConfirmation bool   `yaml:"on_device_confirmation"`
	AddressSearchLimit   uint32 `yaml:"address_search_limit"`
	AccountCount         uint32 `yaml:"account_count"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file, applying defaults
// for anything the file does not set.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, provErr.Wrap(err, "parsing %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, data, 0o600)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Network.ChainID <= 0 {
		return provErr.WithDetails(provErr.ErrConfigInvalid, map[string]string{
			"field": "network.chain_id",
		})
	}
	if !hdkey.ValidPath(c.Device.BaseDerivationPath) {
		return provErr.WithDetails(provErr.ErrConfigInvalid, map[string]string{
			"field": "device.base_derivation_path",
			"path":  c.Device.BaseDerivationPath,
		})
	}
	if c.Device.AddressSearchLimit == 0 {
		return provErr.WithDetails(provErr.ErrConfigInvalid, map[string]string{
			"field": "device.address_search_limit",
		})
	}
	return nil
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default configuration directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ledgerctl"
	}
	return filepath.Join(home, ".ledgerctl")
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}
