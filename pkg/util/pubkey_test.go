package util

import (
	"testing"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePrivateKey = "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19"

func Test_PublicKey(t *testing.T) {
	ethKey, err := crypto.HexToECDSA(fixturePrivateKey)
	require.NoError(t, err)
	priv := secp256k1.PrivKeyFromBytes(crypto.FromECDSA(ethKey))

	t.Run("Should parse both encodings to the same key", func(t *testing.T) {
		a, err := ParsePublicKey(priv.PubKey().SerializeUncompressed())
		require.NoError(t, err)
		b, err := ParsePublicKey(priv.PubKey().SerializeCompressed())
		require.NoError(t, err)
		assert.True(t, a.IsEqual(b))
	})
	t.Run("Should derive the same address as go-ethereum", func(t *testing.T) {
		assert.Equal(t, crypto.PubkeyToAddress(ethKey.PublicKey), PublicKeyToAddress(priv.PubKey()))
	})
	t.Run("Should reject a truncated key", func(t *testing.T) {
		_, err := ParsePublicKey(priv.PubKey().SerializeUncompressed()[:40])
		assert.ErrorIs(t, err, types.ErrInvalidPublicKey)
	})
}
