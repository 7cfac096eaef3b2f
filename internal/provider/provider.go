// Package provider exposes the web3 subprovider surface backed by a
// Ledger hardware device. It answers the account and signing methods a
// provider engine delegates to hardware wallets and passes everything
// else by.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/otoco-io/ledger-web3-subprovider/internal/config"
	"github.com/otoco-io/ledger-web3-subprovider/internal/device"
	"github.com/otoco-io/ledger-web3-subprovider/internal/hdkey"
	"github.com/otoco-io/ledger-web3-subprovider/internal/session"
)

// Config configures a Subprovider.
type Config struct {
	// NetworkID is the chain ID transactions are bound to. Required.
	NetworkID *big.Int

	// BaseDerivationPath is the account-level derivation path.
	// Defaults to 44'/60'/0'.
	BaseDerivationPath string

	// ShouldAskForOnDeviceConfirmation makes address retrieval wait
	// for confirmation on the device screen.
	ShouldAskForOnDeviceConfirmation bool

	// AddressSearchLimit bounds how many derived addresses are
	// scanned when resolving a from address. Defaults to 1000.
	AddressSearchLimit uint32

	// NumAddressesToReturn is how many accounts GetAccounts lists.
	// Defaults to 20.
	NumAddressesToReturn uint32

	// Factory opens device connections. Defaults to the USB HID
	// factory.
	Factory device.Factory

	// Logger receives debug and error output. Defaults to a logger
	// that discards everything.
	Logger *config.Logger
}

// Subprovider is a web3 subprovider that signs with a Ledger device.
// All device access is serialized; concurrent calls queue.
type Subprovider struct {
	session      *session.Session
	accountCount uint32
}

// New creates a Subprovider.
func New(cfg Config) (*Subprovider, error) {
	if cfg.Factory == nil {
		cfg.Factory = device.NewHIDFactory()
	}
	if cfg.NumAddressesToReturn == 0 {
		cfg.NumAddressesToReturn = hdkey.DefaultAccountCount
	}

	sess, err := session.New(cfg.Factory, session.Options{
		NetworkID:            cfg.NetworkID,
		BaseDerivationPath:   cfg.BaseDerivationPath,
		OnDeviceConfirmation: cfg.ShouldAskForOnDeviceConfirmation,
		AddressSearchLimit:   cfg.AddressSearchLimit,
	}, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Subprovider{
		session:      sess,
		accountCount: cfg.NumAddressesToReturn,
	}, nil
}

// GetAccounts returns the device's derived addresses under the base
// derivation path, lowest index first. A count of zero falls back to
// the configured NumAddressesToReturn.
func (p *Subprovider) GetAccounts(ctx context.Context, count uint32) ([]common.Address, error) {
	if count == 0 {
		count = p.accountCount
	}
	return p.session.Accounts(ctx, count)
}

// SignTransaction signs a transaction with the device key behind
// params.From and returns the raw signed transaction as 0x-prefixed
// hex, ready for eth_sendRawTransaction.
func (p *Subprovider) SignTransaction(ctx context.Context, params *session.TxParams) (string, error) {
	return p.session.SignTransaction(ctx, params)
}

// SignPersonalMessage signs a hex-encoded EIP-191 personal message and
// returns the 65-byte signature as 0x-prefixed hex.
func (p *Subprovider) SignPersonalMessage(ctx context.Context, from common.Address, data string) (string, error) {
	return p.session.SignPersonalMessage(ctx, from, data)
}

// SignTypedData reports that EIP-712 signing is unsupported.
func (p *Subprovider) SignTypedData(ctx context.Context, from common.Address, typedData string) (string, error) {
	return p.session.SignTypedData(ctx, from, typedData)
}

// Path returns the base derivation path in use.
func (p *Subprovider) Path() string {
	return p.session.BaseDerivationPath()
}

// SetPath switches the base derivation path. Previously derived
// accounts become unreachable until the path is switched back.
func (p *Subprovider) SetPath(path string) error {
	return p.session.SetBaseDerivationPath(path)
}

// OpenSessions reports the number of live device connections.
func (p *Subprovider) OpenSessions() int {
	return p.session.OpenSessions()
}
