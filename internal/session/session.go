// Package session implements exclusive signing sessions against a
// hardware device. A session owns the device connection guard, resolves
// derivation paths for requested addresses, and turns device signatures
// into fully signed Ethereum payloads.
package session

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/otoco-io/ledger-web3-subprovider/internal/config"
	"github.com/otoco-io/ledger-web3-subprovider/internal/device"
	"github.com/otoco-io/ledger-web3-subprovider/internal/hdkey"
	"github.com/otoco-io/ledger-web3-subprovider/internal/metrics"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// Options configures a signing session.
type Options struct {
	// NetworkID is the chain ID transactions are bound to. Required.
	NetworkID *big.Int

	// BaseDerivationPath is the account-level path accounts descend
	// from. Defaults to hdkey.DefaultBaseDerivationPath.
	BaseDerivationPath string

	// OnDeviceConfirmation asks the device to display and confirm
	// address retrieval on its screen.
	OnDeviceConfirmation bool

	// AddressSearchLimit bounds address-to-path resolution. Defaults
	// to hdkey.DefaultSearchLimit.
	AddressSearchLimit uint32
}

// TxParams carries the transaction fields a web3 client submits for
// signing. Pointer and slice fields distinguish absent from zero; the
// signer fills nothing in, so every field the wire format needs must
// be present (an empty Data slice, not nil, for plain transfers).
type TxParams struct {
	From     common.Address
	To       *common.Address
	Nonce    *uint64
	GasLimit *uint64
	Value    *big.Int
	ChainID  *big.Int

	// Legacy pricing.
	GasPrice *big.Int

	// EIP-1559 pricing. Setting either selects a dynamic fee
	// transaction.
	GasTipCap *big.Int
	GasFeeCap *big.Int

	Data []byte
}

// Session mediates all signing traffic to one hardware device. The
// embedded guard guarantees at most one live device connection; every
// operation opens the device, works, and closes it before returning.
type Session struct {
	guard  *ConnectionGuard
	opts   Options
	logger *config.Logger
	stats  *metrics.Metrics

	mu   sync.Mutex
	root *hdkey.ExtendedKey
}

// New creates a signing session. A nil logger disables logging.
func New(factory device.Factory, opts Options, logger *config.Logger) (*Session, error) {
	if opts.NetworkID == nil || opts.NetworkID.Sign() <= 0 {
		return nil, provErr.WithDetails(provErr.ErrConfigInvalid, map[string]string{
			"field": "networkId",
		})
	}
	if opts.BaseDerivationPath == "" {
		opts.BaseDerivationPath = hdkey.DefaultBaseDerivationPath
	}
	if !hdkey.ValidPath(opts.BaseDerivationPath) {
		return nil, provErr.WithDetails(provErr.ErrInvalidDerivationPath, map[string]string{
			"path": opts.BaseDerivationPath,
		})
	}
	if opts.AddressSearchLimit == 0 {
		opts.AddressSearchLimit = hdkey.DefaultSearchLimit
	}
	if logger == nil {
		logger = config.NullLogger()
	}

	return &Session{
		guard:  NewConnectionGuard(factory),
		opts:   opts,
		logger: logger,
		stats:  metrics.Global,
	}, nil
}

// OpenSessions reports how many device connections are live. Exposed
// for callers that want to assert the session cleaned up after itself.
func (s *Session) OpenSessions() int {
	return s.guard.OpenSessions()
}

// BaseDerivationPath returns the account-level path in use.
func (s *Session) BaseDerivationPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.BaseDerivationPath
}

// SetBaseDerivationPath switches the account-level path and discards
// the cached root key so the next operation re-derives from the device.
func (s *Session) SetBaseDerivationPath(path string) error {
	if !hdkey.ValidPath(path) {
		return provErr.WithDetails(provErr.ErrInvalidDerivationPath, map[string]string{
			"path": path,
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.BaseDerivationPath = path
	s.root = nil
	return nil
}

// RootKey returns the extended public key at the base derivation path,
// fetching it from the device on first use and caching it afterwards.
// The chain code never changes for a given path on a given seed, so one
// device round trip serves all later address derivation.
func (s *Session) RootKey(ctx context.Context) (*hdkey.ExtendedKey, error) {
	s.mu.Lock()
	if s.root != nil {
		root := s.root
		s.mu.Unlock()
		return root, nil
	}
	basePath := s.opts.BaseDerivationPath
	confirm := s.opts.OnDeviceConfirmation
	s.mu.Unlock()

	indices, err := hdkey.ParsePath(basePath)
	if err != nil {
		return nil, err
	}

	var root *hdkey.ExtendedKey
	err = s.withDevice(ctx, func(client device.Client) error {
		pubKey, chainCode, devErr := client.DeriveAddress(ctx, indices, confirm, true)
		if devErr != nil {
			return provErr.Device(devErr)
		}
		root, devErr = hdkey.New(pubKey, chainCode, basePath)
		return devErr
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
	s.logger.Debug("root key cached for path %s", basePath)
	return root, nil
}

// Accounts returns the first count addresses under the base path.
func (s *Session) Accounts(ctx context.Context, count uint32) ([]common.Address, error) {
	root, err := s.RootKey(ctx)
	if err != nil {
		return nil, err
	}
	return hdkey.ListAccounts(root, count)
}

// SignTransaction signs the transaction described by params with the
// device key behind params.From and returns the RLP-encoded signed
// transaction as a 0x-prefixed hex string.
func (s *Session) SignTransaction(ctx context.Context, params *TxParams) (string, error) {
	raw, err := s.signTransaction(ctx, params)
	s.stats.RecordSigningOp(err)
	return raw, err
}

func (s *Session) signTransaction(ctx context.Context, params *TxParams) (string, error) {
	if err := validateTxParams(params); err != nil {
		return "", err
	}

	chainID := s.opts.NetworkID
	if params.ChainID != nil {
		if params.ChainID.Cmp(s.opts.NetworkID) != 0 {
			return "", provErr.WithDetails(provErr.ErrInvalidTransactionParams, map[string]string{
				"field":    "chainId",
				"got":      params.ChainID.String(),
				"expected": s.opts.NetworkID.String(),
			})
		}
		chainID = params.ChainID
	}

	tx := buildTransaction(params, chainID)
	signer := types.LatestSignerForChainID(chainID)
	digest := signer.Hash(tx)

	signingPath, err := s.pathForAddress(ctx, params.From)
	if err != nil {
		return "", err
	}
	indices, err := hdkey.ParsePath(signingPath)
	if err != nil {
		return "", err
	}

	var sig *device.Signature
	err = s.withDevice(ctx, func(client device.Client) error {
		var devErr error
		sig, devErr = client.SignTransaction(ctx, indices, digest[:])
		if devErr != nil {
			return provErr.Device(devErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sig.Normalize()

	signed, err := sealTransaction(tx, signer, sig, params.From)
	if err != nil {
		return "", err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", err
	}
	s.logger.Debug("signed transaction %s from %s", signed.Hash().Hex(), params.From.Hex())
	return hexutil.Encode(raw), nil
}

// SignPersonalMessage signs an EIP-191 personal message with the device
// key behind from. The data is the hex-encoded message payload; the
// device applies the "\x19Ethereum Signed Message:\n" envelope itself.
// Returns the 65-byte r||s||v signature as a 0x-prefixed hex string.
func (s *Session) SignPersonalMessage(ctx context.Context, from common.Address, data string) (string, error) {
	sig, err := s.signPersonalMessage(ctx, from, data)
	s.stats.RecordSigningOp(err)
	if err != nil {
		return "", err
	}
	return sig.Hex(), nil
}

func (s *Session) signPersonalMessage(ctx context.Context, from common.Address, data string) (*device.Signature, error) {
	if data == "" {
		return nil, provErr.ErrDataMissingForSignPersonalMessage
	}
	message, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil {
		return nil, provErr.Wrap(provErr.ErrDataMissingForSignPersonalMessage, "decoding message hex")
	}
	if from == (common.Address{}) {
		return nil, provErr.ErrFromAddressInvalid
	}

	signingPath, err := s.pathForAddress(ctx, from)
	if err != nil {
		return nil, err
	}
	indices, err := hdkey.ParsePath(signingPath)
	if err != nil {
		return nil, err
	}

	var sig *device.Signature
	err = s.withDevice(ctx, func(client device.Client) error {
		var devErr error
		sig, devErr = client.SignPersonalMessage(ctx, indices, message)
		if devErr != nil {
			return provErr.Device(devErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sig.Normalize()

	if !crypto.ValidateSignatureValues(sig.V, new(big.Int).SetBytes(sig.R[:]), new(big.Int).SetBytes(sig.S[:]), true) {
		return nil, provErr.ErrWrongSignature
	}
	return sig, nil
}

// SignTypedData reports that EIP-712 typed data signing is not
// available. The device is never touched.
func (s *Session) SignTypedData(context.Context, common.Address, string) (string, error) {
	return "", provErr.WithDetails(provErr.ErrMethodNotSupported, map[string]string{
		"method": "eth_signTypedData",
	})
}

// pathForAddress resolves the derivation path whose address matches
// from, scanning child indices under the base path.
func (s *Session) pathForAddress(ctx context.Context, from common.Address) (string, error) {
	if from == (common.Address{}) {
		return "", provErr.ErrFromAddressInvalid
	}

	root, err := s.RootKey(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	limit := s.opts.AddressSearchLimit
	s.mu.Unlock()

	path, err := hdkey.FindPathForAddress(root, from, limit)
	if err != nil {
		s.stats.RecordLookupMiss()
		return "", err
	}
	s.stats.RecordLookupHit()
	return path, nil
}

// withDevice claims the guard, which opens the device, runs fn, and
// releases on every path. Latency and failures feed the metrics.
func (s *Session) withDevice(ctx context.Context, fn func(device.Client) error) error {
	start := time.Now()
	client, err := s.guard.Acquire(ctx)
	if err != nil {
		s.stats.RecordDeviceSession(time.Since(start), err)
		s.logger.Error("device acquire failed: %v", err)
		return err
	}
	defer func() {
		_ = s.guard.Release()
	}()

	err = fn(client)
	s.stats.RecordDeviceSession(time.Since(start), err)
	return err
}

// validateTxParams checks that every field the wire encoding needs is
// present; nothing is filled in on the caller's behalf. Field presence
// is checked before the from address so callers see the most
// actionable failure first.
func validateTxParams(params *TxParams) error {
	if params == nil {
		return provErr.ErrInvalidTransactionParams
	}
	missing := func(field string) error {
		return provErr.WithDetails(provErr.ErrInvalidTransactionParams, map[string]string{
			"missing": field,
		})
	}
	if params.To == nil {
		return missing("to")
	}
	if params.Nonce == nil {
		return missing("nonce")
	}
	if params.GasLimit == nil {
		return missing("gas")
	}
	if params.Value == nil {
		return missing("value")
	}
	if params.Data == nil {
		return missing("data")
	}
	if params.GasTipCap != nil || params.GasFeeCap != nil {
		if params.GasTipCap == nil || params.GasFeeCap == nil {
			return missing("maxFeePerGas/maxPriorityFeePerGas")
		}
	} else if params.GasPrice == nil {
		return missing("gasPrice")
	}
	if params.From == (common.Address{}) {
		return provErr.ErrFromAddressInvalid
	}
	return nil
}

// buildTransaction assembles the unsigned transaction, preferring a
// dynamic fee transaction whenever EIP-1559 pricing is present.
func buildTransaction(params *TxParams, chainID *big.Int) *types.Transaction {
	if params.GasTipCap != nil {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     *params.Nonce,
			GasTipCap: params.GasTipCap,
			GasFeeCap: params.GasFeeCap,
			Gas:       *params.GasLimit,
			To:        params.To,
			Value:     params.Value,
			Data:      params.Data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    *params.Nonce,
		GasPrice: params.GasPrice,
		Gas:      *params.GasLimit,
		To:       params.To,
		Value:    params.Value,
		Data:     params.Data,
	})
}

// sealTransaction attaches the device signature and proves it recovers
// to the requested sender before anything leaves the session.
func sealTransaction(tx *types.Transaction, signer types.Signer, sig *device.Signature, from common.Address) (*types.Transaction, error) {
	if !crypto.ValidateSignatureValues(sig.V, new(big.Int).SetBytes(sig.R[:]), new(big.Int).SetBytes(sig.S[:]), true) {
		return nil, provErr.ErrWrongSignature
	}

	signed, err := tx.WithSignature(signer, sig.Bytes())
	if err != nil {
		return nil, provErr.Wrap(err, "attaching signature")
	}

	sender, err := types.Sender(signer, signed)
	if err != nil {
		return nil, provErr.Wrap(err, "recovering sender")
	}
	if sender != from {
		return nil, provErr.WithDetails(provErr.ErrWrongSigner, map[string]string{
			"expected":  from.Hex(),
			"recovered": sender.Hex(),
		})
	}
	return signed, nil
}
