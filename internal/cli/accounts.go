package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/otoco-io/ledger-web3-subprovider/internal/hdkey"
	"github.com/otoco-io/ledger-web3-subprovider/internal/output"
)

var accountsCount uint32

// accountEntry is one derived account in JSON output.
type accountEntry struct {
	Index   uint32 `json:"index"`
	Address string `json:"address"`
	Path    string `json:"path"`
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List addresses derived from the connected device",
	Long: `Derives the extended public key at the base derivation path from the
device, then lists child addresses. Only the first request touches the
device; child derivation happens locally.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		p, err := newProvider()
		if err != nil {
			return err
		}

		ctx, cancel := cmdContext()
		defer cancel()

		addresses, err := p.GetAccounts(ctx, accountsCount)
		if err != nil {
			return err
		}

		basePath := p.Path()
		entries := make([]accountEntry, 0, len(addresses))
		for i, addr := range addresses {
			index := uint32(i) //nolint:gosec // bounded by account count
			entries = append(entries, accountEntry{
				Index:   index,
				Address: addr.Hex(),
				Path:    hdkey.ChildPath(basePath, index),
			})
		}

		if formatter.IsJSON() {
			return formatter.Print(entries)
		}

		table := output.NewTable("INDEX", "ADDRESS", "PATH")
		for _, e := range entries {
			table.AddRow(strconv.FormatUint(uint64(e.Index), 10), e.Address, e.Path)
		}
		return formatter.Print(table)
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	accountsCmd.Flags().Uint32Var(&accountsCount, "count", 0, "number of accounts to list (default from config)")
	rootCmd.AddCommand(accountsCmd)
}
