package hdkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want []uint32
	}{
		{
			name: "default base path",
			path: "44'/60'/0'",
			want: []uint32{0x8000002c, 0x8000003c, 0x80000000},
		},
		{
			name: "with m prefix",
			path: "m/44'/60'/0'/5",
			want: []uint32{0x8000002c, 0x8000003c, 0x80000000, 5},
		},
		{
			name: "plain child",
			path: "0/1",
			want: []uint32{0, 1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePathInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"just prefix", "m/"},
		{"not a number", "44'/sixty'/0'"},
		{"double hardened marker", "44''/60'/0'"},
		{"index overflow", "4294967296"},
		{"hardened bit in index", "2147483648"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePath(tt.path)
			require.ErrorIs(t, err, provErr.ErrInvalidDerivationPath)
		})
	}
}

func TestChildPathFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "44'/60'/0'/12", ChildPath("44'/60'/0'", 12))
}

func TestValidPath(t *testing.T) {
	t.Parallel()
	assert.True(t, ValidPath(DefaultBaseDerivationPath))
	assert.False(t, ValidPath("m/"))
}
