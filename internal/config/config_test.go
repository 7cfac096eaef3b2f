package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otoco-io/ledger-web3-subprovider/internal/config"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := config.Defaults()
	cfg.Network.ChainID = 11155111
	cfg.Device.OnDeviceConfirmation = true
	cfg.Device.AddressSearchLimit = 50

	err := config.Save(cfg, path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Version, loaded.Version)
	assert.Equal(t, int64(11155111), loaded.Network.ChainID)
	assert.True(t, loaded.Device.OnDeviceConfirmation)
	assert.Equal(t, uint32(50), loaded.Device.AddressSearchLimit)
}

func TestLoad_AppliesDefaultsForMissingFields(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	// Only the chain ID is set; everything else should default.
	content := "network:\n  chain_id: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loaded, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(5), loaded.Network.ChainID)
	assert.Equal(t, "44'/60'/0'", loaded.Device.BaseDerivationPath)
	assert.Equal(t, config.DefaultAddressSearchLimit, loaded.Device.AddressSearchLimit)
	assert.Equal(t, config.DefaultAccountCount, loaded.Device.AccountCount)
	assert.False(t, loaded.Device.OnDeviceConfirmation)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: [oops"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults are valid", func(*config.Config) {}, false},
		{"zero chain id", func(c *config.Config) { c.Network.ChainID = 0 }, true},
		{"negative chain id", func(c *config.Config) { c.Network.ChainID = -1 }, true},
		{"bad derivation path", func(c *config.Config) { c.Device.BaseDerivationPath = "44'/60'/x" }, true},
		{"empty derivation path", func(c *config.Config) { c.Device.BaseDerivationPath = "" }, true},
		{"zero search limit", func(c *config.Config) { c.Device.AddressSearchLimit = 0 }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, provErr.ErrConfigInvalid)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSave_CreatesParentDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	require.NoError(t, config.Save(config.Defaults(), path))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/tmp/home", "config.yaml"), config.Path("/tmp/home"))
}
