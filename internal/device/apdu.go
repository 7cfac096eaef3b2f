package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// errInvalidReplyHeader means the report framing did not match; this
// usually means another application holds the device channel.
var errInvalidReplyHeader = errors.New("invalid reply header")

// errReplyTooShort means the reply lacked even a status word.
var errReplyTooShort = errors.New("reply too short")

// Ethereum app APDU instruction set.
type opcode byte

const (
	opRetrieveAddress     opcode = 0x02 // public key + address for a BIP32 path
	opSignTransaction     opcode = 0x04 // sign a transaction after on-device review
	opSignPersonalMessage opcode = 0x08 // sign a personal message after on-device review
)

const (
	p1NoConfirm byte = 0x00 // return the address directly
	p1Confirm   byte = 0x01 // display on-device and wait for confirmation
	p1First     byte = 0x00 // first payload block
	p1Continue  byte = 0x80 // subsequent payload block

	p2NoChainCode   byte = 0x00
	p2WithChainCode byte = 0x01
)

// apduChunkSize is the maximum payload per APDU block.
const apduChunkSize = 255

// statusOK is the trailing status word of a successful exchange.
const statusOK = 0x9000

// exchange performs one APDU round trip over the HID report framing:
// 64-byte reports carrying channel 0x0101, command tag 0x05 and a
// big-endian packet sequence index. The reply's two-byte status word is
// verified and stripped.
func exchange(conn io.ReadWriter, op opcode, p1, p2 byte, data []byte) ([]byte, error) {
	if len(data) > apduChunkSize {
		return nil, fmt.Errorf("apdu payload too large: %d bytes", len(data))
	}

	// APDU: length prefix, class 0xe0, instruction, parameters, data.
	apdu := make([]byte, 2, 7+len(data))
	binary.BigEndian.PutUint16(apdu, uint16(5+len(data)))
	apdu = append(apdu, 0xe0, byte(op), p1, p2, byte(len(data)))
	apdu = append(apdu, data...)

	header := []byte{0x01, 0x01, 0x05, 0x00, 0x00}
	chunk := make([]byte, 0, 64)
	space := 64 - len(header)

	for i := 0; len(apdu) > 0; i++ {
		chunk = append(chunk[:0], header...)
		binary.BigEndian.PutUint16(chunk[3:], uint16(i))

		if len(apdu) > space {
			chunk = append(chunk, apdu[:space]...)
			apdu = apdu[space:]
		} else {
			chunk = append(chunk, apdu...)
			apdu = nil
		}
		if _, err := conn.Write(chunk); err != nil {
			return nil, err
		}
	}

	// Stream the reply back in 64-byte reports.
	var reply []byte
	expected := -1
	chunk = chunk[:64]
	for {
		if _, err := io.ReadFull(conn, chunk); err != nil {
			return nil, err
		}
		if chunk[0] != 0x01 || chunk[1] != 0x01 || chunk[2] != 0x05 {
			return nil, provErr.Wrap(errInvalidReplyHeader, "reading device reply")
		}

		var payload []byte
		if chunk[3] == 0x00 && chunk[4] == 0x00 {
			// First report carries the total reply length.
			expected = int(binary.BigEndian.Uint16(chunk[5:7]))
			payload = chunk[7:]
		} else {
			payload = chunk[5:]
		}
		if expected < 0 {
			return nil, provErr.Wrap(errInvalidReplyHeader, "reply started mid-stream")
		}

		if need := expected - len(reply); need <= len(payload) {
			reply = append(reply, payload[:need]...)
			break
		}
		reply = append(reply, payload...)
	}

	if len(reply) < 2 {
		return nil, provErr.Wrap(errReplyTooShort, "reading device reply")
	}
	status := binary.BigEndian.Uint16(reply[len(reply)-2:])
	if status != statusOK {
		return nil, provErr.Wrap(fmt.Errorf("device returned status 0x%04x", status), "apdu exchange")
	}
	return reply[:len(reply)-2], nil
}

// encodePath flattens a derivation path into the device wire format:
// a component count byte followed by big-endian uint32 indices.
func encodePath(path []uint32) []byte {
	out := make([]byte, 1+4*len(path))
	out[0] = byte(len(path))
	for i, component := range path {
		binary.BigEndian.PutUint32(out[1+4*i:], component)
	}
	return out
}
