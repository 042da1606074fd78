package util

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HexParsing(t *testing.T) {
	t.Run("Should strip only a leading prefix", func(t *testing.T) {
		assert.Equal(t, "abcd", StripHexPrefix("0xabcd"))
		assert.Equal(t, "abcd", StripHexPrefix("0Xabcd"))
		assert.Equal(t, "abcd", StripHexPrefix("abcd"))
		assert.Equal(t, "", StripHexPrefix("0x"))
		assert.Equal(t, "0", StripHexPrefix("0"))
	})
	t.Run("Should decode bytes with and without prefix", func(t *testing.T) {
		a, err := DecodeHexBytes("0xdeadbeef")
		require.NoError(t, err)
		b, err := DecodeHexBytes("deadbeef")
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, a)
	})
	t.Run("Should left pad odd length input", func(t *testing.T) {
		b, err := DecodeHexBytes("0xabc")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x0a, 0xbc}, b)
	})
	t.Run("Should reject non hex bytes", func(t *testing.T) {
		_, err := DecodeHexBytes("0xzz")
		assert.ErrorIs(t, err, types.ErrInvalidHex)
	})
	t.Run("Should parse quantities", func(t *testing.T) {
		v, err := ParseHexQuantity("0x0de0b6b3a7640000")
		require.NoError(t, err)
		assert.Equal(t, 0, v.Cmp(big.NewInt(1_000_000_000_000_000_000)))

		v, err = ParseHexQuantity("5208")
		require.NoError(t, err)
		assert.Equal(t, int64(21000), v.Int64())

		v, err = ParseHexQuantity("0x")
		require.NoError(t, err)
		assert.Equal(t, 0, v.Sign())
	})
	t.Run("Should reject overflowing uint64", func(t *testing.T) {
		_, err := ParseHexUint64("0x10000000000000000")
		assert.ErrorIs(t, err, types.ErrInvalidHex)

		v, err := ParseHexUint64("0xffffffffffffffff")
		require.NoError(t, err)
		assert.Equal(t, uint64(^uint64(0)), v)
	})
	t.Run("Should reject garbage quantities", func(t *testing.T) {
		_, err := ParseHexQuantity("0xnope")
		assert.ErrorIs(t, err, types.ErrInvalidHex)
		_, err = ParseHexQuantity("-0x1")
		assert.ErrorIs(t, err, types.ErrInvalidHex)
	})
}

func FuzzParseHexQuantityPrefixInsensitive(f *testing.F) {
	f.Add("")
	f.Add("0")
	f.Add("5208")
	f.Add("ffffffffffffffffffff")

	f.Fuzz(func(t *testing.T, s string) {
		bare, bareErr := ParseHexQuantity(s)
		prefixed, prefixedErr := ParseHexQuantity("0x" + s)
		if StripHexPrefix(s) != s {
			// s already carries a prefix; "0x0x.." is not a quantity
			return
		}
		require.Equal(t, bareErr == nil, prefixedErr == nil)
		if bareErr == nil {
			require.Equal(t, 0, bare.Cmp(prefixed))
		}
	})
}
