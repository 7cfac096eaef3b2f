package cli

import (
	"github.com/spf13/cobra"

	"github.com/otoco-io/ledger-web3-subprovider/internal/config"
	"github.com/otoco-io/ledger-web3-subprovider/internal/hdkey"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show or change the base derivation path",
}

var pathShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the base derivation path",
	RunE: func(_ *cobra.Command, _ []string) error {
		if formatter.IsJSON() {
			return formatter.Print(map[string]string{"path": cfg.Device.BaseDerivationPath})
		}
		return formatter.Print(cfg.Device.BaseDerivationPath)
	},
}

var pathSetCmd = &cobra.Command{
	Use:   "set <derivation-path>",
	Short: "Set the base derivation path and persist it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := args[0]
		if !hdkey.ValidPath(path) {
			return provErr.WithDetails(provErr.ErrInvalidDerivationPath, map[string]string{
				"path": path,
			})
		}

		cfg.Device.BaseDerivationPath = path

		home := homeDir
		if home == "" {
			home = config.DefaultHome()
		}
		if err := config.Save(cfg, config.Path(home)); err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(map[string]string{"path": path})
		}
		return formatter.Printf("base derivation path set to %s\n", path)
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	pathCmd.AddCommand(pathShowCmd)
	pathCmd.AddCommand(pathSetCmd)
	rootCmd.AddCommand(pathCmd)
}
