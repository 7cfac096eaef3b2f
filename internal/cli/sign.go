package cli

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/otoco-io/ledger-web3-subprovider/internal/session"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign transactions and messages with the device",
}

var (
	signFrom string
	signData string
)

var signMessageCmd = &cobra.Command{
	Use:   "message",
	Short: "Sign an EIP-191 personal message",
	Long: `Signs a hex-encoded message with the device key behind --from. The
device shows the message and waits for approval before signing.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		from, err := parseAddress(signFrom, "from")
		if err != nil {
			return err
		}

		p, err := newProvider()
		if err != nil {
			return err
		}

		ctx, cancel := cmdContext()
		defer cancel()

		sig, err := p.SignPersonalMessage(ctx, from, signData)
		if err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(map[string]string{"signature": sig})
		}
		return formatter.Print(sig)
	},
}

var (
	txTo        string
	txNonce     uint64
	txGas       uint64
	txValue     string
	txGasPrice  string
	txTipCap    string
	txFeeCap    string
	txDataFlag  string
	txNonceSet  bool
	txGasSet    bool
	txParamsErr = func(field string) error {
		return provErr.WithDetails(provErr.ErrInvalidTransactionParams, map[string]string{
			"flag": field,
		})
	}
)

var signTxCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign a transaction",
	Long: `Builds a transaction from flags, signs it on the device, and prints
the raw signed transaction ready for eth_sendRawTransaction. Pass
either --gas-price for a legacy transaction or --max-fee plus
--max-priority-fee for an EIP-1559 one.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		txNonceSet = cmd.Flags().Changed("nonce")
		txGasSet = cmd.Flags().Changed("gas")

		params, err := buildTxParams()
		if err != nil {
			return err
		}

		p, err := newProvider()
		if err != nil {
			return err
		}

		ctx, cancel := cmdContext()
		defer cancel()

		raw, err := p.SignTransaction(ctx, params)
		if err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(map[string]string{"raw_transaction": raw})
		}
		return formatter.Print(raw)
	},
}

// buildTxParams converts flag values into signing parameters.
func buildTxParams() (*session.TxParams, error) {
	from, err := parseAddress(signFrom, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseAddress(txTo, "to")
	if err != nil {
		return nil, err
	}

	params := &session.TxParams{
		From: from,
		To:   &to,
	}
	if txNonceSet {
		nonce := txNonce
		params.Nonce = &nonce
	}
	if txGasSet {
		gas := txGas
		params.GasLimit = &gas
	}

	if params.Value, err = parseBigFlag(txValue, "value"); err != nil {
		return nil, err
	}
	if params.GasPrice, err = parseBigFlag(txGasPrice, "gas-price"); err != nil {
		return nil, err
	}
	if params.GasTipCap, err = parseBigFlag(txTipCap, "max-priority-fee"); err != nil {
		return nil, err
	}
	if params.GasFeeCap, err = parseBigFlag(txFeeCap, "max-fee"); err != nil {
		return nil, err
	}

	// The session rejects absent data; no --data means empty call data.
	data, decodeErr := decodeHexFlag(txDataFlag)
	if decodeErr != nil {
		return nil, txParamsErr("data")
	}
	params.Data = data
	return params, nil
}

// parseAddress parses a 0x-prefixed address flag.
func parseAddress(value, field string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, provErr.WithDetails(provErr.ErrFromAddressInvalid, map[string]string{
			"flag":  field,
			"value": value,
		})
	}
	return common.HexToAddress(value), nil
}

// decodeHexFlag decodes a hex flag value with or without a 0x prefix.
func decodeHexFlag(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// parseBigFlag parses a decimal big integer flag, nil when unset.
func parseBigFlag(value, field string) (*big.Int, error) {
	if value == "" {
		return nil, nil //nolint:nilnil // absent flag means absent field
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, txParamsErr(field)
	}
	return n, nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	signCmd.PersistentFlags().StringVar(&signFrom, "from", "", "address whose device key signs")

	signMessageCmd.Flags().StringVar(&signData, "data", "", "hex-encoded message to sign")

	signTxCmd.Flags().StringVar(&txTo, "to", "", "recipient address")
	signTxCmd.Flags().Uint64Var(&txNonce, "nonce", 0, "account nonce")
	signTxCmd.Flags().Uint64Var(&txGas, "gas", 0, "gas limit")
	signTxCmd.Flags().StringVar(&txValue, "value", "0", "value in wei")
	signTxCmd.Flags().StringVar(&txGasPrice, "gas-price", "", "legacy gas price in wei")
	signTxCmd.Flags().StringVar(&txTipCap, "max-priority-fee", "", "EIP-1559 priority fee in wei")
	signTxCmd.Flags().StringVar(&txFeeCap, "max-fee", "", "EIP-1559 max fee in wei")
	signTxCmd.Flags().StringVar(&txDataFlag, "data", "", "hex-encoded call data")

	signCmd.AddCommand(signMessageCmd)
	signCmd.AddCommand(signTxCmd)
	rootCmd.AddCommand(signCmd)
}
