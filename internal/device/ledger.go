package device

import (
	"context"
	"encoding/binary"
	"errors"
	"io"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// signatureLength is the fixed size of a device signature reply:
// one byte V followed by 32 bytes each of R and S.
const signatureLength = 65

var (
	errMissingPublicKey = errors.New("reply lacks public key entry")
	errMissingAddress   = errors.New("reply lacks address entry")
	errMissingChainCode = errors.New("reply lacks chain code entry")
	errMissingSignature = errors.New("reply lacks signature")
)

// ledgerClient speaks the Ethereum app protocol over an open HID
// channel. One ledgerClient maps to exactly one open device handle.
type ledgerClient struct {
	conn io.ReadWriter
}

// NewLedgerClient wraps an open device channel in a Client. The channel
// is usually a HID handle but any ReadWriter carrying the report
// framing works, which keeps the protocol testable without hardware.
func NewLedgerClient(conn io.ReadWriter) Client {
	return &ledgerClient{conn: conn}
}

// DeriveAddress implements Client. The reply layout is a length-prefixed
// uncompressed public key, a length-prefixed ASCII address (ignored
// here; the address is recomputed host-side) and, when requested, a
// 32-byte chain code.
func (c *ledgerClient) DeriveAddress(ctx context.Context, path []uint32, confirm, includeChainCode bool) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p1 := p1NoConfirm
	if confirm {
		p1 = p1Confirm
	}
	p2 := p2NoChainCode
	if includeChainCode {
		p2 = p2WithChainCode
	}

	reply, err := exchange(c.conn, opRetrieveAddress, p1, p2, encodePath(path))
	if err != nil {
		return nil, nil, err
	}

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return nil, nil, errMissingPublicKey
	}
	publicKey := reply[1 : 1+int(reply[0])]
	reply = reply[1+int(reply[0]):]

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return nil, nil, errMissingAddress
	}
	reply = reply[1+int(reply[0]):]

	var chainCode []byte
	if includeChainCode {
		if len(reply) < 32 {
			return nil, nil, errMissingChainCode
		}
		chainCode = reply[:32]
	}
	return publicKey, chainCode, nil
}

// SignTransaction implements Client, sending the derivation path and
// the 32-byte signable digest in a single block.
func (c *ledgerClient) SignTransaction(ctx context.Context, path []uint32, digest []byte) (*Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload := append(encodePath(path), digest...)
	reply, err := exchange(c.conn, opSignTransaction, p1First, 0, payload)
	if err != nil {
		return nil, err
	}
	return parseSignature(reply)
}

// SignPersonalMessage implements Client. The payload is the derivation
// path, a big-endian message length and the message itself, chunked
// into APDU-sized blocks; the firmware hashes and signs on-device.
func (c *ledgerClient) SignPersonalMessage(ctx context.Context, path []uint32, message []byte) (*Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(path)*4+5+len(message))
	payload = append(payload, encodePath(path)...)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(message)))
	payload = append(payload, message...)

	var (
		p1    = p1First
		reply []byte
		err   error
	)
	for len(payload) > 0 {
		chunk := apduChunkSize
		if chunk > len(payload) {
			chunk = len(payload)
		}
		reply, err = exchange(c.conn, opSignPersonalMessage, p1, 0, payload[:chunk])
		if err != nil {
			return nil, err
		}
		payload = payload[chunk:]
		p1 = p1Continue
	}
	return parseSignature(reply)
}

// Close implements Client, releasing the underlying channel when it
// supports closing.
func (c *ledgerClient) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// parseSignature splits a V || R || S device reply.
func parseSignature(reply []byte) (*Signature, error) {
	if len(reply) != signatureLength {
		return nil, provErr.Wrap(errMissingSignature, "parsing device reply")
	}
	sig := &Signature{V: reply[0]}
	copy(sig.R[:], reply[1:33])
	copy(sig.S[:], reply[33:65])
	return sig, nil
}
