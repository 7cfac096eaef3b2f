package hdkey

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// DefaultSearchLimit bounds the linear path search. Wallets expose only
// a handful of active accounts and the device discourages bulk key
// exposure, so a small bounded scan beats maintaining an index.
const DefaultSearchLimit = 1000

// DefaultAccountCount is how many addresses ListAccounts returns when
// the caller does not say otherwise.
const DefaultAccountCount = 20

// FindPathForAddress scans child indices 0..limit-1 in increasing order
// and returns the full derivation path of the first child whose address
// matches target. Address comparison is on the 20-byte value, so hex
// casing never matters. Returns ErrAddressNotFound when no child within
// the bound matches.
func FindPathForAddress(root *ExtendedKey, target common.Address, limit uint32) (string, error) {
	for i := uint32(0); i < limit; i++ {
		child, err := root.Child(i)
		if err != nil {
			return "", err
		}
		if child.Address == target {
			return child.DerivationPath, nil
		}
	}

	return "", provErr.WithDetails(provErr.ErrAddressNotFound, map[string]string{
		"address":     target.Hex(),
		"searchLimit": strconv.FormatUint(uint64(limit), 10),
	})
}

// ListAccounts returns the first count child addresses of root, ordered
// by increasing index.
func ListAccounts(root *ExtendedKey, count uint32) ([]common.Address, error) {
	accounts := make([]common.Address, 0, count)
	for i := uint32(0); i < count; i++ {
		child, err := root.Child(i)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, child.Address)
	}
	return accounts, nil
}
