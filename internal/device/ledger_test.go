package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records written reports and serves pre-framed replies.
type fakeConn struct {
	wrote   [][]byte
	replies bytes.Buffer
	closed  bool
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.wrote = append(f.wrote, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeConn) Read(p []byte) (int, error) {
	return f.replies.Read(p)
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

// frameReply wraps reply data plus a status word into 64-byte HID
// reports, mirroring what the device sends back.
func frameReply(data []byte, status uint16) []byte {
	payload := append(append([]byte(nil), data...), byte(status>>8), byte(status))
	var out []byte
	for i := 0; ; i++ {
		chunk := make([]byte, 64)
		chunk[0], chunk[1], chunk[2] = 0x01, 0x01, 0x05
		binary.BigEndian.PutUint16(chunk[3:], uint16(i)) //nolint:gosec // bounded loop
		var space []byte
		if i == 0 {
			binary.BigEndian.PutUint16(chunk[5:], uint16(len(payload))) //nolint:gosec // test payloads are small
			space = chunk[7:]
		} else {
			space = chunk[5:]
		}
		n := copy(space, payload)
		payload = payload[n:]
		out = append(out, chunk...)
		if len(payload) == 0 {
			return out
		}
	}
}

func testPath() []uint32 {
	return []uint32{0x8000002c, 0x8000003c, 0x80000000, 0}
}

func TestDeriveAddressParsesReply(t *testing.T) {
	t.Parallel()

	pubKey := bytes.Repeat([]byte{0xab}, 65)
	pubKey[0] = 0x04
	address := bytes.Repeat([]byte{'a'}, 40)
	chainCode := bytes.Repeat([]byte{0xcc}, 32)

	var reply []byte
	reply = append(reply, byte(len(pubKey)))
	reply = append(reply, pubKey...)
	reply = append(reply, byte(len(address)))
	reply = append(reply, address...)
	reply = append(reply, chainCode...)

	conn := &fakeConn{}
	conn.replies.Write(frameReply(reply, statusOK))

	client := NewLedgerClient(conn)
	gotPub, gotCC, err := client.DeriveAddress(context.Background(), testPath(), true, true)
	require.NoError(t, err)
	assert.Equal(t, pubKey, gotPub)
	assert.Equal(t, chainCode, gotCC)

	// The request report carries the APDU header and the flattened path.
	require.NotEmpty(t, conn.wrote)
	report := conn.wrote[0]
	assert.Equal(t, []byte{0x01, 0x01, 0x05, 0x00, 0x00}, report[:5])
	assert.Equal(t, byte(0xe0), report[7])
	assert.Equal(t, byte(opRetrieveAddress), report[8])
	assert.Equal(t, p1Confirm, report[9])
	assert.Equal(t, p2WithChainCode, report[10])
	assert.Equal(t, byte(4), report[12], "path component count")
}

func TestDeriveAddressWithoutChainCode(t *testing.T) {
	t.Parallel()

	pubKey := bytes.Repeat([]byte{0x11}, 65)
	address := bytes.Repeat([]byte{'b'}, 40)

	var reply []byte
	reply = append(reply, byte(len(pubKey)))
	reply = append(reply, pubKey...)
	reply = append(reply, byte(len(address)))
	reply = append(reply, address...)

	conn := &fakeConn{}
	conn.replies.Write(frameReply(reply, statusOK))

	gotPub, gotCC, err := NewLedgerClient(conn).DeriveAddress(context.Background(), testPath(), false, false)
	require.NoError(t, err)
	assert.Equal(t, pubKey, gotPub)
	assert.Nil(t, gotCC)
}

func TestDeriveAddressTruncatedReply(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	conn.replies.Write(frameReply([]byte{0x41, 0x01}, statusOK))

	_, _, err := NewLedgerClient(conn).DeriveAddress(context.Background(), testPath(), false, true)
	require.ErrorIs(t, err, errMissingPublicKey)
}

func TestSignTransactionParsesSignature(t *testing.T) {
	t.Parallel()

	reply := make([]byte, signatureLength)
	reply[0] = 0x01
	for i := 1; i < 33; i++ {
		reply[i] = 0xaa
	}
	for i := 33; i < 65; i++ {
		reply[i] = 0xbb
	}

	conn := &fakeConn{}
	conn.replies.Write(frameReply(reply, statusOK))

	digest := bytes.Repeat([]byte{0xd1}, 32)
	sig, err := NewLedgerClient(conn).SignTransaction(context.Background(), testPath(), digest)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), sig.V)
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 32), sig.R[:])
	assert.Equal(t, bytes.Repeat([]byte{0xbb}, 32), sig.S[:])
}

func TestSignPersonalMessageChunksLongPayload(t *testing.T) {
	t.Parallel()

	// Path (17) + length (4) + message (600) spans three APDU blocks;
	// the device acknowledges each and signs on the last.
	message := bytes.Repeat([]byte{0x5a}, 600)
	sigReply := make([]byte, signatureLength)
	sigReply[0] = 28

	conn := &fakeConn{}
	conn.replies.Write(frameReply(nil, statusOK))
	conn.replies.Write(frameReply(nil, statusOK))
	conn.replies.Write(frameReply(sigReply, statusOK))

	sig, err := NewLedgerClient(conn).SignPersonalMessage(context.Background(), testPath(), message)
	require.NoError(t, err)
	assert.Equal(t, byte(28), sig.V)

	// First block is marked as initial, the rest as continuations.
	var firstMarks, contMarks int
	for _, report := range conn.wrote {
		if report[3] != 0x00 || report[4] != 0x00 {
			continue // continuation report of the same APDU block
		}
		switch report[9] {
		case p1First:
			firstMarks++
		case p1Continue:
			contMarks++
		}
	}
	assert.Equal(t, 1, firstMarks)
	assert.Equal(t, 2, contMarks)
}

func TestExchangeStatusError(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	conn.replies.Write(frameReply(nil, 0x6a80))

	_, err := NewLedgerClient(conn).SignTransaction(context.Background(), testPath(), make([]byte, 32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x6a80")
}

func TestExchangeBadHeader(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	bad := frameReply(nil, statusOK)
	bad[0] = 0x00
	conn.replies.Write(bad)

	_, err := NewLedgerClient(conn).SignTransaction(context.Background(), testPath(), make([]byte, 32))
	require.ErrorIs(t, err, errInvalidReplyHeader)
}

func TestClientCloseReleasesConn(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	require.NoError(t, NewLedgerClient(conn).Close())
	assert.True(t, conn.closed)
}

func TestSignatureNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   byte
		want byte
	}{
		{"high form 27", 27, 0},
		{"high form 28", 28, 1},
		{"already low 0", 0, 0},
		{"already low 1", 1, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sig := &Signature{V: tt.in}
			sig.Normalize()
			assert.Equal(t, tt.want, sig.V)
		})
	}
}

func TestSignatureHex(t *testing.T) {
	t.Parallel()

	sig := &Signature{V: 1}
	for i := range sig.R {
		sig.R[i] = 0x11
		sig.S[i] = 0x22
	}

	hex := sig.Hex()
	assert.Len(t, hex, 2+130)
	assert.Equal(t, "0x", hex[:2])
	assert.Equal(t, "01", hex[len(hex)-2:])
}
