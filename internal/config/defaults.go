package config

import "github.com/otoco-io/ledger-web3-subprovider/internal/hdkey"

// Configuration defaults.
const (
	// DefaultChainID is Ethereum mainnet.
	DefaultChainID = int64(1)

	// DefaultAddressSearchLimit bounds how many child indices an
	// address-to-path search will scan.
	DefaultAddressSearchLimit = uint32(1000)

	// DefaultAccountCount is how many derived addresses account
	// listings return.
	DefaultAccountCount = uint32(20)

	// DefaultLoggingLevel is the default log verbosity.
	DefaultLoggingLevel = "error"

	// CurrentVersion is the config schema version.
	CurrentVersion = 1
)

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Version: CurrentVersion,
		Network: NetworkConfig{
			ChainID: DefaultChainID,
		},
		Device: DeviceConfig{
			BaseDerivationPath:   hdkey.DefaultBaseDerivationPath,
			OnDeviceConfirmation: false,
			AddressSearchLimit:   DefaultAddressSearchLimit,
			AccountCount:         DefaultAccountCount,
		},
		Logging: LoggingConfig{
			Level: DefaultLoggingLevel,
		},
	}
}
