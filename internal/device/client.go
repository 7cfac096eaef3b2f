// Package device defines the capability interface to the signing device
// and a concrete Ledger USB HID transport. The rest of the codebase only
// sees the Client and Factory interfaces, so tests substitute in-memory
// doubles and the orchestration layer never touches USB directly.
package device

import (
	"context"
	"encoding/hex"
)

// Signature is the raw r/s/v triple as the device returns it. The core
// never computes signatures itself, only assembles and validates them.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// Normalize brings V into the low form {0, 1}. Ledger firmware replies
// with 27/28 on some operations and 0/1 on others; callers normalize
// once, immediately after the device call, before any further use.
func (s *Signature) Normalize() {
	if s.V >= 27 {
		s.V -= 27
	}
}

// Bytes returns the 65-byte r || s || v form expected by go-ethereum.
func (s *Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Hex returns the 0x-prefixed r || s || v hex string, with v encoded as
// a zero-padded two-digit byte.
func (s *Signature) Hex() string {
	return "0x" + hex.EncodeToString(s.Bytes())
}

// Client is one open channel to the signing device. All methods block
// until the device (and possibly its human owner) responds, and must be
// assumed non-idempotent: retrying a signing call can raise a second
// on-device confirmation prompt.
type Client interface {
	// DeriveAddress asks the device for the public key at the given
	// path, optionally displaying it on-device for user confirmation,
	// and optionally returning the BIP32 chain code alongside.
	DeriveAddress(ctx context.Context, path []uint32, confirm, includeChainCode bool) (publicKey, chainCode []byte, err error)

	// SignTransaction signs a 32-byte transaction digest at the path.
	SignTransaction(ctx context.Context, path []uint32, digest []byte) (*Signature, error)

	// SignPersonalMessage signs raw message bytes at the path. The
	// firmware applies the personal-message envelope itself.
	SignPersonalMessage(ctx context.Context, path []uint32, message []byte) (*Signature, error)

	// Close tears the channel down. Safe to call once per open.
	Close() error
}

// Factory produces device clients. Injected so the session layer and
// tests control how (and whether) real hardware is reached.
type Factory interface {
	Open(ctx context.Context) (Client, error)
}
