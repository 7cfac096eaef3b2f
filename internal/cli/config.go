package cli

import (
	"github.com/spf13/cobra"

	"github.com/otoco-io/ledger-web3-subprovider/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ledgerctl configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(_ *cobra.Command, _ []string) error {
		home := homeDir
		if home == "" {
			home = config.DefaultHome()
		}
		path := config.Path(home)

		if err := config.Save(config.Defaults(), path); err != nil {
			return err
		}
		return formatter.Printf("wrote %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(_ *cobra.Command, _ []string) error {
		return formatter.Print(cfg)
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
