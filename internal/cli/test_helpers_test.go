package cli

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	bip32 "github.com/tyler-smith/go-bip32"

	"github.com/otoco-io/ledger-web3-subprovider/internal/device"
)

// cliSeed is a fixed 32-byte seed backing the fake device.
var cliSeed = []byte("ledger-subprovider-cli-test-seed")

// fakeDevice signs with real keys derived from cliSeed.
type fakeDevice struct {
	master *bip32.Key
	mu     sync.Mutex
}

var _ device.Client = (*fakeDevice)(nil)

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	master, err := bip32.NewMasterKey(cliSeed)
	require.NoError(t, err)
	return &fakeDevice{master: master}
}

func (d *fakeDevice) keyAt(path []uint32) (*bip32.Key, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := d.master
	for _, index := range path {
		var err error
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

func (d *fakeDevice) DeriveAddress(_ context.Context, path []uint32, _, includeChainCode bool) ([]byte, []byte, error) {
	key, err := d.keyAt(path)
	if err != nil {
		return nil, nil, err
	}
	pub := key.PublicKey()
	if !includeChainCode {
		return pub.Key, nil, nil
	}
	return pub.Key, pub.ChainCode, nil
}

func (d *fakeDevice) sign(path []uint32, digest []byte) (*device.Signature, error) {
	key, err := d.keyAt(path)
	if err != nil {
		return nil, err
	}
	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, err
	}
	raw, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, err
	}
	sig := &device.Signature{V: raw[64] + 27}
	copy(sig.R[:], raw[:32])
	copy(sig.S[:], raw[32:64])
	return sig, nil
}

func (d *fakeDevice) SignTransaction(_ context.Context, path []uint32, digest []byte) (*device.Signature, error) {
	return d.sign(path, digest)
}

func (d *fakeDevice) SignPersonalMessage(_ context.Context, path []uint32, message []byte) (*device.Signature, error) {
	return d.sign(path, accounts.TextHash(message))
}

func (d *fakeDevice) Close() error { return nil }

type fakeFactory struct {
	client device.Client
}

func (f *fakeFactory) Open(context.Context) (device.Client, error) {
	return f.client, nil
}

// cliAddress derives the address at child index under 44'/60'/0' with
// private keys, independently of the code under test.
func cliAddress(t *testing.T, index uint32) common.Address {
	t.Helper()
	dev := newFakeDevice(t)
	key, err := dev.keyAt([]uint32{
		44 | bip32.FirstHardenedChild,
		60 | bip32.FirstHardenedChild,
		0 | bip32.FirstHardenedChild,
		index,
	})
	require.NoError(t, err)

	priv, err := crypto.ToECDSA(key.Key)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(priv.PublicKey)
}

// resetFlagState restores every flag to its default so one test's
// flags cannot leak into the next.
func resetFlagState(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlagState(sub)
	}
}

// runCommand executes the root command with args against a fake device
// and returns captured stdout. Must not be used from parallel tests.
func runCommand(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()

	resetFlagState(rootCmd)

	prevFactory := deviceFactory
	deviceFactory = &fakeFactory{client: newFakeDevice(t)}
	t.Cleanup(func() { deviceFactory = prevFactory })

	prevStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	execErr := rootCmd.Execute()

	require.NoError(t, w.Close())
	os.Stdout = prevStdout

	captured, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(captured), execErr
}
