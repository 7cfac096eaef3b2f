// Package cli implements the ledgerctl command-line interface.
//
// This package uses global variables to manage CLI state, which is the
// standard pattern for Cobra-based CLI applications. The globals are
// initialized in PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"math/big"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otoco-io/ledger-web3-subprovider/internal/config"
	"github.com/otoco-io/ledger-web3-subprovider/internal/device"
	"github.com/otoco-io/ledger-web3-subprovider/internal/output"
	"github.com/otoco-io/ledger-web3-subprovider/internal/provider"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	confirmFlag  bool
	timeoutFlag  time.Duration

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter

	// deviceFactory opens device connections; tests swap it out.
	deviceFactory device.Factory = device.NewHIDFactory()
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Sign Ethereum transactions and messages with a Ledger device",
	Long: `ledgerctl talks to a Ledger hardware wallet over USB and signs
Ethereum transactions and personal messages with keys that never leave
the device.

Example:
  ledgerctl accounts --count 5
  ledgerctl sign message --from 0x... --data 0xdeadbeef
  ledgerctl sign tx --from 0x... --to 0x... --nonce 0 --gas 21000 --gas-price 2000000000`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return provErr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		// Missing config is fine; anything else should surface.
		if !os.IsNotExist(err) {
			return err
		}
		cfg = config.Defaults()
	}

	config.ApplyEnvironment(cfg)

	if verbose {
		cfg.Logging.Level = "debug"
	}
	if confirmFlag {
		cfg.Device.OnDeviceConfirmation = true
	}

	logLevel := config.ParseLogLevel(cfg.Logging.Level)
	logger, err = config.NewLogger(logLevel, cfg.Logging.File)
	if err != nil {
		logger = config.NullLogger()
	}

	explicitFormat := output.ParseFormat(outputFormat)
	detectedFormat := output.DetectFormat(os.Stdout, explicitFormat)
	formatter = output.NewFormatter(detectedFormat, os.Stdout)

	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// newProvider builds a subprovider from the loaded configuration.
func newProvider() (*provider.Subprovider, error) {
	return provider.New(provider.Config{
		NetworkID:                        big.NewInt(cfg.Network.ChainID),
		BaseDerivationPath:               cfg.Device.BaseDerivationPath,
		ShouldAskForOnDeviceConfirmation: cfg.Device.OnDeviceConfirmation,
		AddressSearchLimit:               cfg.Device.AddressSearchLimit,
		NumAddressesToReturn:             cfg.Device.AccountCount,
		Factory:                          deviceFactory,
		Logger:                           logger,
	})
}

// cmdContext returns a context bounded by the --timeout flag.
func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeoutFlag)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "ledgerctl data directory (default: ~/.ledgerctl)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&confirmFlag, "confirm", false, "require on-device confirmation for address retrieval")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 60*time.Second, "device operation timeout")
}
