// Package hdkey implements public-only hierarchical deterministic key
// derivation for device-supplied extended public keys. The device never
// discloses private key material, so only non-hardened child derivation
// is available.
package hdkey

import (
	"bytes"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	bip32 "github.com/tyler-smith/go-bip32"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

const (
	compressedPubKeyLength   = 33
	uncompressedPubKeyLength = 65
	chainCodeLength          = 32
)

// ExtendedKey is a public key plus chain code sufficient to derive
// non-hardened child public keys. Immutable once constructed; Child
// produces new values and never mutates the receiver.
type ExtendedKey struct {
	// PublicKey is the 33-byte compressed secp256k1 point.
	PublicKey []byte

	// ChainCode is the 32-byte BIP32 chain code.
	ChainCode []byte

	// DerivationPath is the path this key lives at, e.g. 44'/60'/0'/2.
	DerivationPath string

	// BaseDerivationPath is the path of the root this key descends from.
	BaseDerivationPath string

	// Address is the Ethereum address derived from PublicKey.
	Address common.Address
}

// New constructs an ExtendedKey from raw device-supplied key material.
// The public key may be compressed (33 bytes) or uncompressed (65 bytes,
// as Ledger firmware returns it); uncompressed keys are compressed on
// the way in. Returns ErrInvalidKeyMaterial on malformed input.
func New(publicKey, chainCode []byte, basePath string) (*ExtendedKey, error) {
	compressed, err := compressKey(publicKey)
	if err != nil {
		return nil, err
	}
	if len(chainCode) != chainCodeLength {
		return nil, provErr.WithDetails(provErr.ErrInvalidKeyMaterial, map[string]string{
			"field":  "chainCode",
			"length": strconv.Itoa(len(chainCode)),
		})
	}

	address, err := AddressOf(compressed)
	if err != nil {
		return nil, err
	}

	return &ExtendedKey{
		PublicKey:          compressed,
		ChainCode:          bytes.Clone(chainCode),
		DerivationPath:     basePath,
		BaseDerivationPath: basePath,
		Address:            address,
	}, nil
}

// Child derives the non-hardened child key at the given index. Hardened
// indices are rejected: hardened derivation requires the private key,
// which only the device holds.
func (k *ExtendedKey) Child(index uint32) (*ExtendedKey, error) {
	if index >= bip32.FirstHardenedChild {
		return nil, provErr.WithDetails(provErr.ErrInvalidDerivationPath, map[string]string{
			"reason": "hardened derivation requires the device private key",
			"index":  strconv.FormatUint(uint64(index), 10),
		})
	}

	parent := &bip32.Key{
		Key:       k.PublicKey,
		ChainCode: k.ChainCode,
		Version:   bip32.PublicWalletVersion,
		IsPrivate: false,
	}

	child, err := parent.NewChildKey(index)
	if err != nil {
		return nil, provErr.Wrap(err, "deriving child %d", index)
	}

	address, err := AddressOf(child.Key)
	if err != nil {
		return nil, err
	}

	return &ExtendedKey{
		PublicKey:          child.Key,
		ChainCode:          child.ChainCode,
		DerivationPath:     ChildPath(k.DerivationPath, index),
		BaseDerivationPath: k.BaseDerivationPath,
		Address:            address,
	}, nil
}

// AddressOf derives the Ethereum address for a 33-byte compressed public
// key: keccak256 of the uncompressed point, last 20 bytes.
func AddressOf(compressedPub []byte) (common.Address, error) {
	pub, err := crypto.DecompressPubkey(compressedPub)
	if err != nil {
		return common.Address{}, provErr.WithDetails(provErr.ErrInvalidKeyMaterial, map[string]string{
			"field":  "publicKey",
			"reason": err.Error(),
		})
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// compressKey normalizes a public key to its 33-byte compressed form.
func compressKey(publicKey []byte) ([]byte, error) {
	switch len(publicKey) {
	case compressedPubKeyLength:
		if publicKey[0] != 0x02 && publicKey[0] != 0x03 {
			return nil, provErr.WithDetails(provErr.ErrInvalidKeyMaterial, map[string]string{
				"field":  "publicKey",
				"reason": "invalid compressed point prefix",
			})
		}
		return bytes.Clone(publicKey), nil

	case uncompressedPubKeyLength:
		pub, err := crypto.UnmarshalPubkey(publicKey)
		if err != nil {
			return nil, provErr.WithDetails(provErr.ErrInvalidKeyMaterial, map[string]string{
				"field":  "publicKey",
				"reason": err.Error(),
			})
		}
		return crypto.CompressPubkey(pub), nil

	default:
		return nil, provErr.WithDetails(provErr.ErrInvalidKeyMaterial, map[string]string{
			"field":  "publicKey",
			"length": strconv.Itoa(len(publicKey)),
		})
	}
}
