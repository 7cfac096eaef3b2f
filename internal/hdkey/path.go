package hdkey

import (
	"strconv"
	"strings"

	bip32 "github.com/tyler-smith/go-bip32"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// DefaultBaseDerivationPath is the BIP44 Ethereum account path the
// device exposes by default.
const DefaultBaseDerivationPath = "44'/60'/0'"

// ParsePath converts a derivation path string into the uint32 indices
// the device wire format expects. A leading "m/" prefix is accepted and
// ignored; a trailing apostrophe marks a hardened component (0x80000000
// bit set).
func ParsePath(path string) ([]uint32, error) {
	trimmed := strings.TrimPrefix(path, "m/")
	if trimmed == "" {
		return nil, provErr.WithDetails(provErr.ErrInvalidDerivationPath, map[string]string{
			"path": path,
		})
	}

	parts := strings.Split(trimmed, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		hardened := strings.HasSuffix(part, "'")
		if hardened {
			part = strings.TrimSuffix(part, "'")
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil || uint32(index) >= bip32.FirstHardenedChild {
			return nil, provErr.WithDetails(provErr.ErrInvalidDerivationPath, map[string]string{
				"path":    path,
				"segment": part,
			})
		}

		value := uint32(index)
		if hardened {
			value |= bip32.FirstHardenedChild
		}
		indices = append(indices, value)
	}

	return indices, nil
}

// ChildPath appends a child index to a base derivation path.
func ChildPath(base string, index uint32) string {
	return base + "/" + strconv.FormatUint(uint64(index), 10)
}

// ValidPath reports whether a derivation path string parses.
func ValidPath(path string) bool {
	_, err := ParsePath(path)
	return err == nil
}
