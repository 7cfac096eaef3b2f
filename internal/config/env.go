package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvChainID            = "LEDGER_CHAIN_ID"
	EnvBaseDerivationPath = "LEDGER_BASE_DERIVATION_PATH"
	EnvConfirm            = "LEDGER_ON_DEVICE_CONFIRMATION"
	EnvSearchLimit        = "LEDGER_ADDRESS_SEARCH_LIMIT"
	EnvLogLevel           = "LEDGER_LOG_LEVEL"
	EnvLogFile            = "LEDGER_LOG_FILE"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvChainID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			cfg.Network.ChainID = id
		}
	}

	if v := os.Getenv(EnvBaseDerivationPath); v != "" {
		cfg.Device.BaseDerivationPath = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvConfirm); v != "" {
		cfg.Device.OnDeviceConfirmation = parseBool(v)
	}

	if v := os.Getenv(EnvSearchLimit); v != "" {
		if limit, err := strconv.ParseUint(v, 10, 32); err == nil && limit > 0 {
			cfg.Device.AddressSearchLimit = uint32(limit)
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
